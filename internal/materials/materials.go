// Package materials inspects and annotates the external application
// materials folders. The draft writer owns the folder contents; this
// package only reads file signals and appends review notes.
package materials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobflow/internal/models"
)

// Draft filename prefixes written by the external draft generator.
const (
	coverLetterPrefix = "Cover_Letter_"
	resumePrefix      = "Resume_"
)

// notesFile collects the audit notes appended on revise/reject decisions.
const notesFile = "Review_Notes.md"

// Signals are the filesystem facts the review queue builder folds into
// each item.
type Signals struct {
	HasCoverLetter bool `json:"hasCoverLetter"`
	HasResume      bool `json:"hasResume"`
}

// Ready reports whether both drafts exist, i.e. the entry is waiting for
// human review.
func (s Signals) Ready() bool {
	return s.HasCoverLetter && s.HasResume
}

// Scan checks the entry's folder for draft files. A missing or unreadable
// folder yields zero signals, never an error: absence of drafts and
// absence of the folder mean the same thing to the pipeline.
func Scan(materialsDir, folderName string) Signals {
	var sig Signals
	if materialsDir == "" || folderName == "" {
		return sig
	}
	entries, err := os.ReadDir(filepath.Join(materialsDir, folderName))
	if err != nil {
		return sig
	}
	for _, de := range entries {
		name := de.Name()
		if strings.HasPrefix(name, coverLetterPrefix) {
			sig.HasCoverLetter = true
		}
		if strings.HasPrefix(name, resumePrefix) {
			sig.HasResume = true
		}
	}
	return sig
}

// FolderName derives the application folder name for a listing,
// Company_Title style with filesystem-hostile runes squashed.
func FolderName(company, title string) string {
	c, t := sanitize(company), sanitize(title)
	switch {
	case c == "":
		return t
	case t == "":
		return c
	}
	return c + "_" + t
}

// EnsureFolder creates the application folder if it does not exist and
// returns its path.
func EnsureFolder(materialsDir, folderName string) (string, error) {
	if materialsDir == "" || folderName == "" {
		return "", fmt.Errorf("materials dir and folder name are required")
	}
	full := filepath.Join(materialsDir, folderName)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("creating application folder: %w", err)
	}
	return full, nil
}

func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// WriteAuditNote appends a decision note to the folder's Review_Notes.md.
// Best-effort by contract: callers log failures at warn level and move
// on, and skip the call entirely under dry-run.
func WriteAuditNote(materialsDir, folderName, event, reason string) error {
	if materialsDir == "" || folderName == "" {
		return fmt.Errorf("no materials folder to annotate")
	}
	dir := filepath.Join(materialsDir, folderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create materials folder: %w", err)
	}

	note := fmt.Sprintf("## %s %s\n", models.Timestamp(time.Now()), event)
	if reason != "" {
		note += "\n" + reason + "\n"
	}
	note += "\n"

	f, err := os.OpenFile(filepath.Join(dir, notesFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open notes file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(note); err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	return nil
}

// Package identity derives stable queue identities for pipeline entries
// and implements the loose entry equivalence used by every stage mutation.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"jobflow/internal/models"
)

// Derived id prefixes, ordered most to least specific.
const (
	jobPrefix    = "q_job_"
	folderPrefix = "q_folder_"
	sigPrefix    = "q_sig_"
)

// sigHexLen is the length of the truncated signature hash.
const sigHexLen = 12

// stripMarks decomposes to NFKD and removes combining marks, so "Café"
// and "Cafe" produce the same signature.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// QueueIDFor returns the entry's stable queue id. It is a pure function
// of the entry's fields: an explicit queueId wins, then jobId, then
// folderName, then a content signature of company|title. Recomputing from
// identical fields always yields the same id, which is what makes
// repeated runs idempotent.
func QueueIDFor(e models.PipelineEntry) string {
	switch {
	case e.QueueID != "":
		return e.QueueID
	case e.JobID != "":
		return jobPrefix + e.JobID
	case e.FolderName != "":
		return folderPrefix + e.FolderName
	}
	return sigPrefix + Signature(e.Company, e.Title)
}

// Signature hashes the normalized company|title pair. Used as the
// last-resort identity for entries that lost their job id and folder on
// the way through an external tool.
func Signature(company, title string) string {
	sum := sha256.Sum256([]byte(Normalize(company) + "|" + Normalize(title)))
	return hex.EncodeToString(sum[:])[:sigHexLen]
}

// Normalize case-folds, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// SameEntry reports whether a and b refer to the same application. Any
// single criterion suffices: matching queue ids, matching job ids or
// matching folder names. The equivalence is deliberately loose so that
// records survive partial or missing fields across tool boundaries.
func SameEntry(a, b models.PipelineEntry) bool {
	if QueueIDFor(a) == QueueIDFor(b) {
		return true
	}
	if a.JobID != "" && a.JobID == b.JobID {
		return true
	}
	if a.FolderName != "" && a.FolderName == b.FolderName {
		return true
	}
	return false
}

// Dedupe collapses entries to one record per queue id in a single pass.
// The first occurrence wins and input order is otherwise preserved. After
// Dedupe no two elements share a queue id.
func Dedupe(entries []models.PipelineEntry) []models.PipelineEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]models.PipelineEntry, 0, len(entries))
	for _, e := range entries {
		id := QueueIDFor(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, e)
	}
	return out
}

// Package state persists the two shared pipeline documents: the state
// document holding the stage queues and review cursor, and the listings
// cache. Both are whole-file JSON with atomic rewrites; there are no
// partial writes.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"jobflow/internal/identity"
	"jobflow/internal/models"
)

// Store reads and writes the shared documents. Concurrent invocations are
// serialized externally by the run lock; the store itself assumes a
// single writer.
type Store struct {
	StatePath    string
	ListingsPath string
}

// NewStore returns a Store over the given document paths.
func NewStore(statePath, listingsPath string) *Store {
	return &Store{StatePath: statePath, ListingsPath: listingsPath}
}

// LoadState reads the state document. A missing, unreadable or corrupt
// file falls back to the empty-default document: data loss is possible
// but startup never crashes.
func (s *Store) LoadState() *models.StateDoc {
	doc := &models.StateDoc{}
	data, err := os.ReadFile(s.StatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("state document unreadable, starting empty", "path", s.StatePath, "err", err)
		}
		Ensure(doc)
		return doc
	}
	if err := json.Unmarshal(data, doc); err != nil {
		slog.Warn("state document corrupt, starting empty", "path", s.StatePath, "err", err)
		doc = &models.StateDoc{}
	}
	Ensure(doc)
	return doc
}

// SaveState normalizes and writes the state document atomically.
func (s *Store) SaveState(doc *models.StateDoc) error {
	Ensure(doc)
	return writeJSON(s.StatePath, doc)
}

// LoadListings reads the listings cache with the same fallback behavior
// as LoadState.
func (s *Store) LoadListings() *models.ListingsDoc {
	doc := &models.ListingsDoc{}
	data, err := os.ReadFile(s.ListingsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("listings document unreadable, starting empty", "path", s.ListingsPath, "err", err)
		}
		EnsureListings(doc)
		return doc
	}
	if err := json.Unmarshal(data, doc); err != nil {
		slog.Warn("listings document corrupt, starting empty", "path", s.ListingsPath, "err", err)
		doc = &models.ListingsDoc{}
	}
	EnsureListings(doc)
	return doc
}

// SaveListings writes the listings cache atomically.
func (s *Store) SaveListings(doc *models.ListingsDoc) error {
	EnsureListings(doc)
	return writeJSON(s.ListingsPath, doc)
}

// writeJSON writes the whole document to a temp file in the target
// directory and renames it into place.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Ensure normalizes a state document in place: missing stage arrays
// default to empty, the review sub-object gets its defaults, and every
// stage array is re-deduped. It runs on every load and before every save,
// so partially-initialized or legacy documents heal without a migration
// step and every writer is idempotent under retry.
func Ensure(doc *models.StateDoc) {
	p := &doc.JobPipeline
	if p.PendingMaterials == nil {
		p.PendingMaterials = []models.PipelineEntry{}
	}
	if p.MaterialsReady == nil {
		p.MaterialsReady = []models.PipelineEntry{}
	}
	if p.SubmittedApplications == nil {
		p.SubmittedApplications = []models.PipelineEntry{}
	}
	if p.Review.SkippedQueueIDs == nil {
		p.Review.SkippedQueueIDs = []string{}
	}
	p.PendingMaterials = identity.Dedupe(p.PendingMaterials)
	p.MaterialsReady = identity.Dedupe(p.MaterialsReady)
	p.SubmittedApplications = identity.Dedupe(p.SubmittedApplications)
}

// EnsureListings normalizes a listings document in place.
func EnsureListings(doc *models.ListingsDoc) {
	if doc.Listings == nil {
		doc.Listings = map[string]*models.Listing{}
	}
	for jobID, l := range doc.Listings {
		if l == nil {
			delete(doc.Listings, jobID)
			continue
		}
		if l.JobID == "" {
			l.JobID = jobID
		}
	}
}

// --- Stage operations ---

// stageSlice returns the addressed stage array.
func stageSlice(p *models.Pipeline, stage models.Stage) *[]models.PipelineEntry {
	switch stage {
	case models.StagePendingMaterials:
		return &p.PendingMaterials
	case models.StageMaterialsReady:
		return &p.MaterialsReady
	case models.StageSubmittedApplications:
		return &p.SubmittedApplications
	}
	return nil
}

// Entries returns the given stage's entries.
func Entries(doc *models.StateDoc, stage models.Stage) []models.PipelineEntry {
	if s := stageSlice(&doc.JobPipeline, stage); s != nil {
		return *s
	}
	return nil
}

// FindEntry locates the first entry loosely matching target across all
// stage queues, returning a copy and the stage it lives in.
func FindEntry(doc *models.StateDoc, target models.PipelineEntry) (models.PipelineEntry, models.Stage, bool) {
	for _, stage := range models.Stages {
		for _, e := range *stageSlice(&doc.JobPipeline, stage) {
			if identity.SameEntry(e, target) {
				return e, stage, true
			}
		}
	}
	return models.PipelineEntry{}, "", false
}

// RemoveEverywhere deletes every entry loosely matching target from all
// three stage queues and reports how many were removed.
func RemoveEverywhere(doc *models.StateDoc, target models.PipelineEntry) int {
	removed := 0
	for _, stage := range models.Stages {
		s := stageSlice(&doc.JobPipeline, stage)
		kept := (*s)[:0]
		for _, e := range *s {
			if identity.SameEntry(e, target) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		*s = kept
	}
	return removed
}

// MoveTo places entry into the destination stage. The move is always
// remove-from-all-then-add, so the entry ends up in exactly one queue no
// matter where (or how many times) it appeared before.
func MoveTo(doc *models.StateDoc, entry models.PipelineEntry, stage models.Stage) error {
	dst := stageSlice(&doc.JobPipeline, stage)
	if dst == nil {
		return fmt.Errorf("unknown stage %q", stage)
	}
	entry.QueueID = identity.QueueIDFor(entry)
	RemoveEverywhere(doc, entry)
	*dst = append(*dst, entry)
	Ensure(doc)
	return nil
}

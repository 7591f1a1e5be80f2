// Package models defines the core domain types for the jobflow pipeline.
//
// Listing status graph:
//
//	new ──► qualified ──► prepped ──► materials_ready ──► submitted
//	 │          │            ▲ │             │                │
//	 │          │            │ └─────────────┤                │
//	 │          │            └───────────────┘ (revise)       │
//	 └──────────┴────────────┴───────────────┴────────────────┴──► archived
//
// archived is terminal.
package models

import (
	"fmt"
	"time"
)

// Status represents a Listing's position in the application lifecycle.
type Status string

const (
	StatusNew            Status = "new"
	StatusQualified      Status = "qualified"
	StatusPrepped        Status = "prepped"
	StatusMaterialsReady Status = "materials_ready"
	StatusSubmitted      Status = "submitted"
	StatusArchived       Status = "archived"
)

// validTransitions lists every allowed (from → to) pair. prepped →
// submitted is legal because an entry can be approved straight out of
// pending_materials once its drafts exist on disk.
var validTransitions = map[Status][]Status{
	StatusNew:            {StatusQualified, StatusArchived},
	StatusQualified:      {StatusPrepped, StatusArchived},
	StatusPrepped:        {StatusMaterialsReady, StatusSubmitted, StatusArchived},
	StatusMaterialsReady: {StatusSubmitted, StatusPrepped, StatusArchived},
	StatusSubmitted:      {StatusArchived},
	// archived is terminal, no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusQualified, StatusPrepped, StatusMaterialsReady, StatusSubmitted, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
// An empty or unknown from status is always allowed: legacy documents
// predate the status field and the store is self-healing.
func IsTransitionAllowed(from, to Status) bool {
	if from == "" {
		return true
	}
	if _, err := ParseStatus(string(from)); err != nil {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Stage names one of the three pipeline stage queues.
type Stage string

const (
	StagePendingMaterials      Stage = "pending_materials"
	StageMaterialsReady        Stage = "materials_ready"
	StageSubmittedApplications Stage = "submitted_applications"
)

// Stages lists the stage queues in lifecycle order.
var Stages = []Stage{StagePendingMaterials, StageMaterialsReady, StageSubmittedApplications}

// Listing is a discovered job posting. It is owned by the external
// discovery/scoring collaborators; the core only updates status,
// timestamps, applicationFolder and queueId.
type Listing struct {
	JobID             string   `json:"jobId"`
	Company           string   `json:"company,omitempty"`
	Title             string   `json:"title,omitempty"`
	Location          string   `json:"location,omitempty"`
	JobURL            string   `json:"jobUrl,omitempty"`
	Score             *float64 `json:"score,omitempty"`
	Status            Status   `json:"status,omitempty"`
	ApplicationFolder string   `json:"applicationFolder,omitempty"`
	QueueID           string   `json:"queueId,omitempty"`
	PostedAt          string   `json:"postedAt,omitempty"`
	DiscoveredAt      string   `json:"discoveredAt,omitempty"`
	ScoredAt          string   `json:"scoredAt,omitempty"`
	PreppedAt         string   `json:"preppedAt,omitempty"`
	SubmittedAt       string   `json:"submittedAt,omitempty"`
	ArchivedAt        string   `json:"archivedAt,omitempty"`
	ArchiveReason     string   `json:"archiveReason,omitempty"`
}

// PipelineEntry is a denormalized record of one Listing's progress through
// a stage queue. Invariant: an entry lives in at most one stage queue at a
// time; stage moves are remove-from-all-then-add.
type PipelineEntry struct {
	QueueID    string   `json:"queueId,omitempty"`
	JobID      string   `json:"jobId,omitempty"`
	FolderName string   `json:"folderName,omitempty"`
	Company    string   `json:"company,omitempty"`
	Title      string   `json:"title,omitempty"`
	Score      *float64 `json:"score,omitempty"`

	CreatedAt        string `json:"createdAt,omitempty"`
	PreppedAt        string `json:"preppedAt,omitempty"`
	MaterialsReadyAt string `json:"materialsReadyAt,omitempty"`
	// MaterialsReadyDate is a legacy date-only duplicate of
	// MaterialsReadyAt kept for documents written by older tooling.
	MaterialsReadyDate  string `json:"materialsReadyDate,omitempty"`
	RevisionRequestedAt string `json:"revisionRequestedAt,omitempty"`
	RevisionReason      string `json:"revisionReason,omitempty"`
	SubmittedAt         string `json:"submittedAt,omitempty"`
	FollowUpCreatedAt   string `json:"followUpCreatedAt,omitempty"`
	FollowUpTaskID      string `json:"followUpTaskId,omitempty"`
}

// IsBlank reports whether the entry carries no identifying field at all.
// Blank entries are skipped by the review queue builder rather than
// crashing it.
func (e PipelineEntry) IsBlank() bool {
	return e.QueueID == "" && e.JobID == "" && e.FolderName == "" && e.Company == "" && e.Title == ""
}

// ReviewState is the persisted review cursor and skip set. It is mutated
// only by the decision state machine.
type ReviewState struct {
	CurrentQueueID  string   `json:"currentQueueId,omitempty"`
	SkippedQueueIDs []string `json:"skippedQueueIds"`
}

// Pipeline holds the three stage queues plus the review cursor state.
type Pipeline struct {
	PendingMaterials      []PipelineEntry `json:"pending_materials"`
	MaterialsReady        []PipelineEntry `json:"materials_ready"`
	SubmittedApplications []PipelineEntry `json:"submitted_applications"`
	Review                ReviewState     `json:"review"`
}

// StateDoc is the aggregate root of the shared state document. It is
// loaded, mutated in memory and saved whole; there are no partial writes.
type StateDoc struct {
	JobPipeline Pipeline `json:"job_pipeline"`
}

// ListingsDoc is the shared listings cache document, keyed by jobId.
type ListingsDoc struct {
	Listings map[string]*Listing `json:"listings"`
}

// ReviewQueueItem is a derived, never-persisted projection: a
// PipelineEntry merged with its resolved Listing plus filesystem signals
// from the materials folder.
type ReviewQueueItem struct {
	Entry          PipelineEntry `json:"entry"`
	Listing        *Listing      `json:"listing,omitempty"`
	Stage          Stage         `json:"stage"`
	HasCoverLetter bool          `json:"hasCoverLetter"`
	HasResume      bool          `json:"hasResume"`
}

// Score returns the item's effective score: the entry's snapshot if
// present, else the backing listing's, else 0.
func (it ReviewQueueItem) Score() float64 {
	if it.Entry.Score != nil {
		return *it.Entry.Score
	}
	if it.Listing != nil && it.Listing.Score != nil {
		return *it.Listing.Score
	}
	return 0
}

// --- Timestamps ---

// timeFormats are the accepted document timestamp layouts. Older tooling
// wrote bare dates, so parsing is deliberately lenient.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses a document timestamp. ok is false for empty or
// unparseable values; callers sort those last rather than failing.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp renders t in the canonical document form (RFC 3339, UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ReadyTime returns the most recent parseable of the entry's
// materialsReadyAt, materialsReadyDate, createdAt and preppedAt stamps.
// It is the tie-breaker for equal review-queue scores.
func (e PipelineEntry) ReadyTime() time.Time {
	var latest time.Time
	for _, s := range []string{e.MaterialsReadyAt, e.MaterialsReadyDate, e.CreatedAt, e.PreppedAt} {
		if t, ok := ParseTime(s); ok && t.After(latest) {
			latest = t
		}
	}
	return latest
}

package review

import (
	"time"

	"jobflow/internal/identity"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

// SubmitResult reports a completed submit stage move.
type SubmitResult struct {
	Entry   models.PipelineEntry `json:"entry"`
	JobID   string               `json:"jobId,omitempty"`
	Folder  string               `json:"folderName,omitempty"`
	Company string               `json:"company,omitempty"`
}

// Submitter performs the submit operation for an approved entry. Moving
// the entry into submitted_applications is the submit operation's
// responsibility, not the decision state machine's; the engine only
// delegates and clears the skip flag afterwards.
type Submitter interface {
	Submit(doc *models.StateDoc, listings *models.ListingsDoc, target models.PipelineEntry) (*SubmitResult, error)
}

// SubmitFunc adapts a plain function to Submitter.
type SubmitFunc func(doc *models.StateDoc, listings *models.ListingsDoc, target models.PipelineEntry) (*SubmitResult, error)

func (f SubmitFunc) Submit(doc *models.StateDoc, listings *models.ListingsDoc, target models.PipelineEntry) (*SubmitResult, error) {
	return f(doc, listings, target)
}

// Submit moves the entry loosely matching target into
// submitted_applications, stamps submittedAt and marks the backing
// listing submitted. Validation happens before any mutation so a failed
// submit leaves both documents untouched.
func Submit(doc *models.StateDoc, listings *models.ListingsDoc, target models.PipelineEntry) (*SubmitResult, error) {
	entry, stage, found := state.FindEntry(doc, target)
	if !found {
		return nil, validationf("no pipeline entry matches %s", describeTarget(target))
	}
	if stage == models.StageSubmittedApplications {
		return nil, validationf("%s is already submitted", identity.QueueIDFor(entry))
	}

	l := ResolveListing(listings, entry)
	if l != nil && !models.IsTransitionAllowed(l.Status, models.StatusSubmitted) {
		return nil, validationf("listing %s is %s and cannot move to submitted", l.JobID, l.Status)
	}

	now := models.Timestamp(time.Now())
	entry.QueueID = identity.QueueIDFor(entry)
	entry.SubmittedAt = now
	if err := state.MoveTo(doc, entry, models.StageSubmittedApplications); err != nil {
		return nil, err
	}

	if l != nil {
		l.Status = models.StatusSubmitted
		l.SubmittedAt = now
		l.QueueID = identity.QueueIDFor(entry)
	}

	return &SubmitResult{
		Entry:   entry,
		JobID:   entry.JobID,
		Folder:  entry.FolderName,
		Company: entry.Company,
	}, nil
}

func describeTarget(t models.PipelineEntry) string {
	switch {
	case t.JobID != "":
		return "job " + t.JobID
	case t.FolderName != "":
		return "folder " + t.FolderName
	default:
		return identity.QueueIDFor(t)
	}
}

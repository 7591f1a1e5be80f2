package review

import (
	"log/slog"
	"strings"
	"time"

	"jobflow/internal/identity"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

// Decision is one of the four review verbs.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionRevise  Decision = "revise"
	DecisionSkip    Decision = "skip"
	DecisionReject  Decision = "reject"
)

// ParseDecision converts a raw string to a Decision. Case-insensitive.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DecisionApprove, DecisionRevise, DecisionSkip, DecisionReject:
		return d, nil
	}
	return "", validationf("unknown decision %q (want approve, revise, skip or reject)", s)
}

// NoteWriter appends an audit note to an application's materials folder.
type NoteWriter interface {
	Write(folderName, event, reason string) error
}

// NoteFunc adapts a plain function to NoteWriter.
type NoteFunc func(folderName, event, reason string) error

func (f NoteFunc) Write(folderName, event, reason string) error {
	return f(folderName, event, reason)
}

// Engine applies decision verbs to the current review item. It mutates
// the documents in memory only; persisting them is the caller's job,
// which is what makes dry-run trivially side-effect-free.
type Engine struct {
	MaterialsDir string
	Submitter    Submitter
	Notes        NoteWriter // optional; nil disables audit notes
	DryRun       bool
}

// Result reports a decision: the acted-on target and the new current
// item, so a caller can chain act-then-show-next without a second query.
type Result struct {
	Decision Decision                `json:"decision"`
	Reason   string                  `json:"reason,omitempty"`
	Target   *models.ReviewQueueItem `json:"target"`
	Submit   *SubmitResult           `json:"submit,omitempty"`
	Next     *models.ReviewQueueItem `json:"next,omitempty"`
	QueueLen int                     `json:"queueLength"`
}

// Decide resolves the current item (explicitID overrides the cursor),
// applies the verb, then rebuilds the queue, picks the new current item
// and persists it as the cursor in doc.
func (e *Engine) Decide(doc *models.StateDoc, listings *models.ListingsDoc, verb Decision, reason, explicitID string) (*Result, error) {
	state.Ensure(doc)
	queue := Build(doc, listings, e.MaterialsDir)
	if len(queue) == 0 {
		return nil, validationf("review queue is empty")
	}

	target := Current(doc, queue, explicitID)
	if target == nil {
		return nil, validationf("no review item matches %q", explicitID)
	}
	targetCopy := *target
	id := identity.QueueIDFor(target.Entry)

	res := &Result{Decision: verb, Reason: reason, Target: &targetCopy}

	switch verb {
	case DecisionApprove:
		sub, err := e.Submitter.Submit(doc, listings, target.Entry)
		if err != nil {
			return nil, err
		}
		res.Submit = sub
		clearSkip(&doc.JobPipeline.Review, id)

	case DecisionRevise:
		if err := e.revise(doc, listings, &targetCopy, reason); err != nil {
			return nil, err
		}

	case DecisionSkip:
		addSkip(&doc.JobPipeline.Review, id)

	case DecisionReject:
		e.reject(doc, listings, &targetCopy, reason)

	default:
		return nil, validationf("unknown decision %q (want approve, revise, skip or reject)", string(verb))
	}

	state.Ensure(doc)
	newQueue := Build(doc, listings, e.MaterialsDir)
	res.QueueLen = len(newQueue)
	next := Current(doc, newQueue, "")
	if next != nil {
		doc.JobPipeline.Review.CurrentQueueID = identity.QueueIDFor(next.Entry)
		nextCopy := *next
		res.Next = &nextCopy
	} else {
		doc.JobPipeline.Review.CurrentQueueID = ""
	}
	return res, nil
}

// revise sends an entry back to pending_materials with the reason
// recorded, reverts the backing listing to prepped and clears the skip
// flag. The listing update is unconditional: review verdicts outrank
// whatever state the listing record drifted into.
func (e *Engine) revise(doc *models.StateDoc, listings *models.ListingsDoc, target *models.ReviewQueueItem, reason string) error {
	entry, _, found := state.FindEntry(doc, target.Entry)
	if !found {
		entry = target.Entry
	}
	entry.RevisionRequestedAt = models.Timestamp(time.Now())
	entry.RevisionReason = reason
	if err := state.MoveTo(doc, entry, models.StagePendingMaterials); err != nil {
		return err
	}

	if l := ResolveListing(listings, entry); l != nil {
		l.Status = models.StatusPrepped
	}
	clearSkip(&doc.JobPipeline.Review, identity.QueueIDFor(entry))
	e.note(target, "revise", reason)
	return nil
}

// reject removes the entry from every stage queue and archives the
// backing listing with the reason.
func (e *Engine) reject(doc *models.StateDoc, listings *models.ListingsDoc, target *models.ReviewQueueItem, reason string) {
	state.RemoveEverywhere(doc, target.Entry)

	if l := ResolveListing(listings, target.Entry); l != nil {
		l.Status = models.StatusArchived
		l.ArchiveReason = reason
		l.ArchivedAt = models.Timestamp(time.Now())
	}
	clearSkip(&doc.JobPipeline.Review, identity.QueueIDFor(target.Entry))
	e.note(target, "reject", reason)
}

// note writes the audit note for a decision. Best-effort: failures are
// warn-logged and never fail the decision. Skipped entirely under
// dry-run.
func (e *Engine) note(target *models.ReviewQueueItem, event, reason string) {
	if e.DryRun || e.Notes == nil {
		return
	}
	folder := target.Entry.FolderName
	if folder == "" && target.Listing != nil {
		folder = target.Listing.ApplicationFolder
	}
	if folder == "" {
		return
	}
	if err := e.Notes.Write(folder, event, reason); err != nil {
		slog.Warn("audit note failed", "folder", folder, "event", event, "err", err)
	}
}

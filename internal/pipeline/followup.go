package pipeline

import (
	"time"

	"github.com/google/uuid"

	"jobflow/internal/identity"
	"jobflow/internal/models"
)

// FollowUpSink receives newly created follow-up tasks. The history
// store implements it; a nil sink still works, the task then exists
// only as the stamp on the pipeline entry.
type FollowUpSink interface {
	CreateFollowUp(entry models.PipelineEntry, dueAt time.Time) (taskID string, err error)
}

// FollowUpResult reports one follow-up task created by a sync.
type FollowUpResult struct {
	QueueID string `json:"queue_id"`
	TaskID  string `json:"task_id,omitempty"`
	Company string `json:"company,omitempty"`
}

// SyncFollowUps walks submitted applications and creates one follow-up
// task for each that was submitted at least `after` ago and does not
// carry a follow-up stamp yet. The stamp makes the sync idempotent:
// re-running never duplicates tasks. Sink failures leave the entry
// unstamped so the next run retries it.
func SyncFollowUps(doc *models.StateDoc, sink FollowUpSink, after time.Duration, dryRun bool, now time.Time) ([]FollowUpResult, []error) {
	var created []FollowUpResult
	var errs []error

	subs := doc.JobPipeline.SubmittedApplications
	for i := range subs {
		e := &subs[i]
		if e.IsBlank() {
			continue
		}
		if e.FollowUpTaskID != "" || e.FollowUpCreatedAt != "" {
			continue
		}
		submitted, ok := models.ParseTime(e.SubmittedAt)
		if !ok || now.Sub(submitted) < after {
			continue
		}

		if dryRun {
			created = append(created, FollowUpResult{
				QueueID: identity.QueueIDFor(*e),
				Company: e.Company,
			})
			continue
		}

		taskID := uuid.NewString()
		if sink != nil {
			id, err := sink.CreateFollowUp(*e, now)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if id != "" {
				taskID = id
			}
		}

		e.FollowUpCreatedAt = models.Timestamp(now)
		e.FollowUpTaskID = taskID
		created = append(created, FollowUpResult{
			QueueID: identity.QueueIDFor(*e),
			TaskID:  taskID,
			Company: e.Company,
		})
	}
	return created, errs
}

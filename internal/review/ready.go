package review

import (
	"time"

	"jobflow/internal/identity"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

// MaterialsReadyResult reports a materials-ready stage move.
type MaterialsReadyResult struct {
	Entry   models.PipelineEntry `json:"entry"`
	From    models.Stage         `json:"from"`
	Already bool                 `json:"already,omitempty"`
}

// MaterialsReady moves the entry loosely matching target from
// pending_materials into materials_ready and advances the backing
// listing. Calling it again for an entry that already sits in
// materials_ready is a no-op, so retries are harmless.
func MaterialsReady(doc *models.StateDoc, listings *models.ListingsDoc, target models.PipelineEntry) (*MaterialsReadyResult, error) {
	entry, stage, found := state.FindEntry(doc, target)
	if !found {
		return nil, validationf("no pipeline entry matches %s", describeTarget(target))
	}
	switch stage {
	case models.StageMaterialsReady:
		return &MaterialsReadyResult{Entry: entry, From: stage, Already: true}, nil
	case models.StageSubmittedApplications:
		return nil, validationf("%s is already submitted", identity.QueueIDFor(entry))
	}

	l := ResolveListing(listings, entry)
	if l != nil && !models.IsTransitionAllowed(l.Status, models.StatusMaterialsReady) {
		return nil, validationf("listing %s is %s and cannot move to materials_ready", l.JobID, l.Status)
	}

	entry.QueueID = identity.QueueIDFor(entry)
	entry.MaterialsReadyAt = models.Timestamp(time.Now())
	if err := state.MoveTo(doc, entry, models.StageMaterialsReady); err != nil {
		return nil, err
	}

	if l != nil {
		l.Status = models.StatusMaterialsReady
		l.QueueID = identity.QueueIDFor(entry)
	}

	return &MaterialsReadyResult{Entry: entry, From: stage}, nil
}

package review

import (
	"jobflow/internal/identity"
	"jobflow/internal/models"
)

// Current resolves the item a decision applies to. Resolution order:
// explicit id, then the persisted cursor if its item is still queued and
// not skipped, then the first unskipped item. When every queued item is
// skipped the skip set is cleared and the head item returned, the cyclic
// reset that lets an operator go around again. Returns nil for an empty
// queue or an explicit id with no match.
//
// The cyclic reset mutates doc's skip set in memory; callers that save
// the document persist it, read-only callers simply drop it.
func Current(doc *models.StateDoc, queue []models.ReviewQueueItem, explicitID string) *models.ReviewQueueItem {
	if len(queue) == 0 {
		return nil
	}
	if explicitID != "" {
		return findInQueue(queue, explicitID)
	}

	rv := &doc.JobPipeline.Review
	if rv.CurrentQueueID != "" && !isSkipped(*rv, rv.CurrentQueueID) {
		if it := findInQueue(queue, rv.CurrentQueueID); it != nil {
			return it
		}
	}
	for i := range queue {
		if !isSkipped(*rv, identity.QueueIDFor(queue[i].Entry)) {
			return &queue[i]
		}
	}

	// Everything is skipped: reset and start over from the head.
	rv.SkippedQueueIDs = []string{}
	return &queue[0]
}

// findInQueue matches by queue id first, then loosely by job id or
// folder name, so an operator can address an item by whichever key they
// have at hand.
func findInQueue(queue []models.ReviewQueueItem, id string) *models.ReviewQueueItem {
	for i := range queue {
		if identity.QueueIDFor(queue[i].Entry) == id {
			return &queue[i]
		}
	}
	probe := models.PipelineEntry{QueueID: id}
	for i := range queue {
		if queue[i].Entry.JobID == id || queue[i].Entry.FolderName == id || identity.SameEntry(queue[i].Entry, probe) {
			return &queue[i]
		}
	}
	return nil
}

func isSkipped(rv models.ReviewState, id string) bool {
	for _, s := range rv.SkippedQueueIDs {
		if s == id {
			return true
		}
	}
	return false
}

func addSkip(rv *models.ReviewState, id string) {
	if id == "" || isSkipped(*rv, id) {
		return
	}
	rv.SkippedQueueIDs = append(rv.SkippedQueueIDs, id)
}

func clearSkip(rv *models.ReviewState, id string) {
	kept := rv.SkippedQueueIDs[:0]
	for _, s := range rv.SkippedQueueIDs {
		if s != id {
			kept = append(kept, s)
		}
	}
	rv.SkippedQueueIDs = kept
}

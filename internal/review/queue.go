// Package review derives the human review queue and applies the four
// decision verbs to it. The queue is a projection: it is rebuilt from the
// stage queues on every call and never persisted, so it self-corrects
// whenever stage data changes between invocations.
package review

import (
	"sort"

	"jobflow/internal/identity"
	"jobflow/internal/materials"
	"jobflow/internal/models"
)

// Build assembles the review queue: every materials_ready entry, plus
// every pending_materials entry whose two draft files already exist on
// disk (ready but unreviewed). Each item carries its resolved listing and
// draft-file signals. The merged set is deduped (ready entries win over
// pending duplicates) and sorted by score descending, ties broken by the
// most recent ready timestamp.
//
// A blank entry is skipped, never fatal: one malformed record must not
// take the whole queue down.
func Build(doc *models.StateDoc, listings *models.ListingsDoc, materialsDir string) []models.ReviewQueueItem {
	p := &doc.JobPipeline
	items := make([]models.ReviewQueueItem, 0, len(p.MaterialsReady)+len(p.PendingMaterials))

	for _, e := range p.MaterialsReady {
		if e.IsBlank() {
			continue
		}
		items = append(items, newItem(e, models.StageMaterialsReady, listings, materialsDir))
	}
	for _, e := range p.PendingMaterials {
		if e.IsBlank() {
			continue
		}
		it := newItem(e, models.StagePendingMaterials, listings, materialsDir)
		if it.HasCoverLetter && it.HasResume {
			items = append(items, it)
		}
	}

	items = dedupeItems(items)
	sortItems(items)
	return items
}

func newItem(e models.PipelineEntry, stage models.Stage, listings *models.ListingsDoc, materialsDir string) models.ReviewQueueItem {
	l := ResolveListing(listings, e)
	folder := e.FolderName
	if folder == "" && l != nil {
		folder = l.ApplicationFolder
	}
	sig := materials.Scan(materialsDir, folder)
	return models.ReviewQueueItem{
		Entry:          e,
		Listing:        l,
		Stage:          stage,
		HasCoverLetter: sig.HasCoverLetter,
		HasResume:      sig.HasResume,
	}
}

// ResolveListing finds the entry's backing listing by job id, falling
// back to matching the listing's applicationFolder against the entry's
// folder name. Folder matches scan in sorted job-id order so duplicate
// folders resolve deterministically.
func ResolveListing(listings *models.ListingsDoc, e models.PipelineEntry) *models.Listing {
	if listings == nil || len(listings.Listings) == 0 {
		return nil
	}
	if e.JobID != "" {
		if l, ok := listings.Listings[e.JobID]; ok {
			return l
		}
	}
	if e.FolderName == "" {
		return nil
	}
	keys := make([]string, 0, len(listings.Listings))
	for k := range listings.Listings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if l := listings.Listings[k]; l != nil && l.ApplicationFolder == e.FolderName {
			return l
		}
	}
	return nil
}

// dedupeItems keeps the first item per queue id. Ready items were
// appended first, so an entry that somehow exists in both stages shows
// its materials_ready face.
func dedupeItems(items []models.ReviewQueueItem) []models.ReviewQueueItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		id := identity.QueueIDFor(it.Entry)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, it)
	}
	return out
}

// sortItems orders by score descending (missing score counts as 0), then
// most recent ready time, then queue id for a stable total order.
func sortItems(items []models.ReviewQueueItem) {
	sort.Slice(items, func(i, j int) bool {
		si, sj := items[i].Score(), items[j].Score()
		if si != sj {
			return si > sj
		}
		ti, tj := items[i].Entry.ReadyTime(), items[j].Entry.ReadyTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return identity.QueueIDFor(items[i].Entry) < identity.QueueIDFor(items[j].Entry)
	})
}

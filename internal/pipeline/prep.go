// Package pipeline coordinates the automated run: collaborator phases,
// auto-prep candidate selection, draft writing and follow-up syncing,
// all under a cross-process lock. Human decisions live in the review
// package; this one only queues work up for them.
package pipeline

import (
	"fmt"
	"sort"
	"time"

	"jobflow/internal/identity"
	"jobflow/internal/materials"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

// Suppressed reports whether a listing is already being worked on: it
// has a pipeline entry in any stage queue or an application folder
// assigned. Suppressed listings never re-enter auto-prep, which is what
// keeps repeated runs from duplicating applications.
func Suppressed(doc *models.StateDoc, l *models.Listing) bool {
	if l == nil {
		return true
	}
	if l.ApplicationFolder != "" {
		return true
	}
	probe := models.PipelineEntry{JobID: l.JobID, QueueID: l.QueueID}
	if probe.JobID == "" && probe.QueueID == "" {
		return false
	}
	_, _, found := state.FindEntry(doc, probe)
	return found
}

// PrepResult reports one listing moved into pending_materials.
type PrepResult struct {
	Entry  models.PipelineEntry `json:"entry"`
	JobID  string               `json:"job_id"`
	Folder string               `json:"folder"`
}

// Prep creates the pipeline entry for a listing: derives its
// application folder name (folderOverride wins when non-empty), appends
// it to pending_materials and advances the listing to prepped. The
// listing must exist, must not already be in the pipeline and must be
// in a status that allows prepping.
func Prep(doc *models.StateDoc, listings *models.ListingsDoc, jobID, folderOverride string, now time.Time) (*PrepResult, error) {
	l := listings.Listings[jobID]
	if l == nil {
		return nil, fmt.Errorf("no listing with job id %q", jobID)
	}
	if Suppressed(doc, l) {
		return nil, fmt.Errorf("listing %s is already in the pipeline", jobID)
	}
	if !models.IsTransitionAllowed(l.Status, models.StatusPrepped) {
		return nil, fmt.Errorf("listing %s is %s and cannot be prepped", jobID, l.Status)
	}

	folder := folderOverride
	if folder == "" {
		folder = materials.FolderName(l.Company, l.Title)
	}
	if folder == "" {
		folder = "Job_" + jobID
	}

	entry := models.PipelineEntry{
		JobID:      jobID,
		FolderName: folder,
		Company:    l.Company,
		Title:      l.Title,
		Score:      l.Score,
		CreatedAt:  models.Timestamp(now),
		PreppedAt:  models.Timestamp(now),
	}
	entry.QueueID = identity.QueueIDFor(entry)
	if err := state.MoveTo(doc, entry, models.StagePendingMaterials); err != nil {
		return nil, err
	}

	l.Status = models.StatusPrepped
	l.ApplicationFolder = folder
	l.QueueID = entry.QueueID
	l.PreppedAt = models.Timestamp(now)

	return &PrepResult{Entry: entry, JobID: jobID, Folder: folder}, nil
}

// PrepCandidates returns the unsuppressed qualified listings ordered by
// priority, best first. Ties break on job id so repeated runs pick the
// same winners.
func PrepCandidates(doc *models.StateDoc, listings *models.ListingsDoc, tiers TierList, now time.Time) []*models.Listing {
	var out []*models.Listing
	for _, l := range listings.Listings {
		if l == nil || l.Status != models.StatusQualified {
			continue
		}
		if Suppressed(doc, l) {
			continue
		}
		out = append(out, l)
	}
	sortByPriority(out, tiers, now)
	return out
}

func sortByPriority(ls []*models.Listing, tiers TierList, now time.Time) {
	totals := make(map[string]float64, len(ls))
	for _, l := range ls {
		totals[l.JobID] = Prioritize(l, tiers, now).Total
	}
	sort.Slice(ls, func(i, j int) bool {
		ti, tj := totals[ls[i].JobID], totals[ls[j].JobID]
		if ti != tj {
			return ti > tj
		}
		return ls[i].JobID < ls[j].JobID
	})
}

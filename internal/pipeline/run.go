package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobflow/internal/collab"
	"jobflow/internal/materials"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

// Phase statuses.
const (
	phaseOK      = "ok"
	phaseSkipped = "skipped"
	phaseFailed  = "failed"
)

// PhaseResult records one phase of a run.
type PhaseResult struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Detail     string   `json:"detail,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Errors     []string `json:"errors,omitempty"`
}

// Report is the full outcome of one pipeline run.
type Report struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMS int64            `json:"duration_ms"`
	DryRun     bool             `json:"dry_run"`
	Phases     []PhaseResult    `json:"phases"`
	Prepped    []PrepResult     `json:"prepped,omitempty"`
	Written    []string         `json:"written,omitempty"`
	FollowUps  []FollowUpResult `json:"follow_ups,omitempty"`
	Err        string           `json:"error,omitempty"`
}

// Failed reports whether any phase failed outright.
func (r *Report) Failed() bool {
	if r.Err != "" {
		return true
	}
	for _, ph := range r.Phases {
		if ph.Status == phaseFailed {
			return true
		}
	}
	return false
}

// Collaborators are the external tools a run delegates phases to. Any
// of them may be nil, which turns that phase into a no-op.
type Collaborators struct {
	Discovery collab.Runner
	Scrape    collab.Runner
	Qualify   collab.Runner
	Write     collab.Runner
}

// Options tune one run.
type Options struct {
	DryRun           bool
	PrepTop          int           // listings to auto-prep, 0 disables
	WriteTop         int           // folders to auto-write, 0 disables
	Backfill         bool          // prep every candidate, ignoring PrepTop
	WaitAfterQualify time.Duration // settle time for external writes
	FollowUpAfter    time.Duration // submission age before follow-up, 0 disables
	LockTimeout      time.Duration
}

// Coordinator drives a full pipeline run: collaborator phases first,
// then auto-prep, auto-write and follow-up sync against the shared
// documents, all while holding the run lock. Every phase is isolated;
// one failing never aborts the rest.
type Coordinator struct {
	Store        *state.Store
	MaterialsDir string
	LockPath     string
	Collab       Collaborators
	Tiers        TierList
	Sink         FollowUpSink
	Opts         Options
}

// Run executes all phases and returns the report. The returned error is
// non-nil only when the run could not happen at all (the lock was held);
// phase failures land in the report instead.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    c.Opts.DryRun,
	}
	start := time.Now()
	defer func() { rep.DurationMS = time.Since(start).Milliseconds() }()

	// Dry runs touch nothing on disk, so they skip the lock too.
	if !c.Opts.DryRun {
		lock, err := AcquireLock(c.LockPath, c.Opts.LockTimeout)
		if err != nil {
			rep.Err = err.Error()
			return rep, err
		}
		defer lock.Release()
	}

	ranCollab := false
	for _, ph := range []struct {
		name   string
		runner collab.Runner
	}{
		{"discovery", c.Collab.Discovery},
		{"scrape", c.Collab.Scrape},
		{"qualify", c.Collab.Qualify},
	} {
		res := c.collabPhase(ctx, ph.name, ph.runner)
		rep.Phases = append(rep.Phases, res)
		if res.Status == phaseOK {
			ranCollab = true
		}
	}

	rep.Phases = append(rep.Phases, c.settlePhase(ranCollab))

	// Reload after the collaborators: they write the shared documents
	// themselves.
	doc := c.Store.LoadState()
	listings := c.Store.LoadListings()

	rep.Phases = append(rep.Phases, c.prepPhase(doc, listings, rep))
	if err := c.save(doc, listings); err != nil {
		rep.Err = err.Error()
		return rep, err
	}

	rep.Phases = append(rep.Phases, c.writePhase(ctx, doc, listings, rep))
	rep.Phases = append(rep.Phases, c.followUpPhase(doc, rep))
	if err := c.save(doc, listings); err != nil {
		rep.Err = err.Error()
		return rep, err
	}

	return rep, nil
}

func (c *Coordinator) save(doc *models.StateDoc, listings *models.ListingsDoc) error {
	if c.Opts.DryRun {
		return nil
	}
	if err := c.Store.SaveState(doc); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if err := c.Store.SaveListings(listings); err != nil {
		return fmt.Errorf("saving listings: %w", err)
	}
	return nil
}

func (c *Coordinator) collabPhase(ctx context.Context, name string, runner collab.Runner) PhaseResult {
	ph := PhaseResult{Name: name, Status: phaseSkipped}
	switch {
	case runner == nil:
		ph.Detail = "not configured"
		return ph
	case c.Opts.DryRun:
		ph.Detail = "dry-run"
		return ph
	case !runner.Available():
		ph.Detail = "tool not installed"
		return ph
	}

	start := time.Now()
	res, err := runner.Run(ctx)
	ph.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		ph.Status = phaseFailed
		ph.Errors = []string{err.Error()}
		return ph
	}
	if res.ExitCode != 0 {
		ph.Status = phaseFailed
		ph.Detail = fmt.Sprintf("exit code %d", res.ExitCode)
		if msg := lastLine(res.Stderr); msg != "" {
			ph.Errors = []string{msg}
		}
		return ph
	}

	ph.Status = phaseOK
	ph.Detail = lastLine(res.Stdout)
	return ph
}

func (c *Coordinator) settlePhase(ranCollab bool) PhaseResult {
	ph := PhaseResult{Name: "settle", Status: phaseSkipped}
	if !ranCollab || c.Opts.WaitAfterQualify <= 0 {
		return ph
	}
	start := time.Now()
	time.Sleep(c.Opts.WaitAfterQualify)
	ph.Status = phaseOK
	ph.DurationMS = time.Since(start).Milliseconds()
	return ph
}

// prepPhase moves the best unsuppressed qualified listings into
// pending_materials. Candidate failures are isolated: one bad listing
// costs one slot, not the phase.
func (c *Coordinator) prepPhase(doc *models.StateDoc, listings *models.ListingsDoc, rep *Report) PhaseResult {
	ph := PhaseResult{Name: "prep", Status: phaseSkipped}
	if c.Opts.PrepTop <= 0 && !c.Opts.Backfill {
		ph.Detail = "disabled"
		return ph
	}

	start := time.Now()
	defer func() { ph.DurationMS = time.Since(start).Milliseconds() }()

	now := time.Now()
	candidates := PrepCandidates(doc, listings, c.Tiers, now)
	if len(candidates) == 0 {
		ph.Detail = "no qualified candidates"
		return ph
	}
	if !c.Opts.Backfill && len(candidates) > c.Opts.PrepTop {
		candidates = candidates[:c.Opts.PrepTop]
	}

	succeeded := 0
	for _, l := range candidates {
		res, err := Prep(doc, listings, l.JobID, "", now)
		if err != nil {
			ph.Errors = append(ph.Errors, fmt.Sprintf("%s: %v", l.JobID, err))
			continue
		}
		if !c.Opts.DryRun {
			if _, err := materials.EnsureFolder(c.MaterialsDir, res.Folder); err != nil {
				ph.Errors = append(ph.Errors, fmt.Sprintf("%s: %v", l.JobID, err))
			}
		}
		rep.Prepped = append(rep.Prepped, *res)
		succeeded++
	}

	ph.Status = phaseOK
	if succeeded == 0 && len(ph.Errors) > 0 {
		ph.Status = phaseFailed
	}
	ph.Detail = fmt.Sprintf("prepped %d of %d candidates", succeeded, len(candidates))
	return ph
}

// writePhase invokes the writer collaborator for pending entries whose
// drafts are missing, best scores first.
func (c *Coordinator) writePhase(ctx context.Context, doc *models.StateDoc, listings *models.ListingsDoc, rep *Report) PhaseResult {
	ph := PhaseResult{Name: "write", Status: phaseSkipped}
	switch {
	case c.Opts.WriteTop <= 0:
		ph.Detail = "disabled"
		return ph
	case c.Collab.Write == nil:
		ph.Detail = "not configured"
		return ph
	case c.Opts.DryRun:
		ph.Detail = "dry-run"
		return ph
	case !c.Collab.Write.Available():
		ph.Detail = "tool not installed"
		return ph
	}

	start := time.Now()
	defer func() { ph.DurationMS = time.Since(start).Milliseconds() }()

	targets := writeTargets(doc, c.MaterialsDir, c.Opts.WriteTop)
	if len(targets) == 0 {
		ph.Detail = "no folders need drafts"
		return ph
	}

	succeeded := 0
	for _, e := range targets {
		res, err := c.Collab.Write.Run(ctx, "--folder", e.FolderName, "--job-id", e.JobID)
		if err != nil {
			ph.Errors = append(ph.Errors, fmt.Sprintf("%s: %v", e.FolderName, err))
			continue
		}
		if res.ExitCode != 0 {
			ph.Errors = append(ph.Errors, fmt.Sprintf("%s: exit code %d", e.FolderName, res.ExitCode))
			continue
		}
		rep.Written = append(rep.Written, e.FolderName)
		succeeded++
	}

	ph.Status = phaseOK
	if succeeded == 0 && len(ph.Errors) > 0 {
		ph.Status = phaseFailed
	}
	ph.Detail = fmt.Sprintf("wrote %d of %d folders", succeeded, len(targets))
	return ph
}

// writeTargets picks pending entries that still need drafts, in stage
// order, which Ensure already keeps deduped.
func writeTargets(doc *models.StateDoc, materialsDir string, max int) []models.PipelineEntry {
	var out []models.PipelineEntry
	for _, e := range doc.JobPipeline.PendingMaterials {
		if e.IsBlank() || e.FolderName == "" {
			continue
		}
		if materials.Scan(materialsDir, e.FolderName).Ready() {
			continue
		}
		out = append(out, e)
		if len(out) == max {
			break
		}
	}
	return out
}

func (c *Coordinator) followUpPhase(doc *models.StateDoc, rep *Report) PhaseResult {
	ph := PhaseResult{Name: "follow-up", Status: phaseSkipped}
	if c.Opts.FollowUpAfter <= 0 {
		ph.Detail = "disabled"
		return ph
	}

	start := time.Now()
	defer func() { ph.DurationMS = time.Since(start).Milliseconds() }()

	created, errs := SyncFollowUps(doc, c.Sink, c.Opts.FollowUpAfter, c.Opts.DryRun, time.Now())
	rep.FollowUps = created
	for _, err := range errs {
		ph.Errors = append(ph.Errors, err.Error())
	}

	ph.Status = phaseOK
	if len(created) == 0 && len(ph.Errors) > 0 {
		ph.Status = phaseFailed
	}
	ph.Detail = fmt.Sprintf("created %d follow-ups", len(created))
	return ph
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

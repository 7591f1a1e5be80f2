package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobflow/internal/collab"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

type fakeRunner struct {
	name      string
	available bool
	exitCode  int
	runErr    error
	stdout    string
	calls     [][]string
}

func (f *fakeRunner) Name() string    { return f.name }
func (f *fakeRunner) Available() bool { return f.available }

func (f *fakeRunner) Run(ctx context.Context, extra ...string) (*collab.Result, error) {
	f.calls = append(f.calls, extra)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &collab.Result{Tool: f.name, ExitCode: f.exitCode, Stdout: f.stdout}, nil
}

type testEnv struct {
	coord *Coordinator
	store *state.Store
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st := state.NewStore(
		filepath.Join(dir, "job_pipeline_state.json"),
		filepath.Join(dir, "listings.json"),
	)
	return &testEnv{
		store: st,
		dir:   dir,
		coord: &Coordinator{
			Store:        st,
			MaterialsDir: filepath.Join(dir, "applications"),
			LockPath:     filepath.Join(dir, "run.lock"),
			Opts:         Options{PrepTop: 5},
		},
	}
}

func (env *testEnv) seedQualified(t *testing.T, jobs ...*models.Listing) {
	t.Helper()
	doc := &models.ListingsDoc{Listings: map[string]*models.Listing{}}
	for _, l := range jobs {
		doc.Listings[l.JobID] = l
	}
	require.NoError(t, env.store.SaveListings(doc))
}

func qualified(jobID, company, title string, sc float64) *models.Listing {
	return &models.Listing{
		JobID:   jobID,
		Company: company,
		Title:   title,
		Score:   &sc,
		Status:  models.StatusQualified,
	}
}

func phaseByName(t *testing.T, rep *Report, name string) PhaseResult {
	t.Helper()
	for _, ph := range rep.Phases {
		if ph.Name == name {
			return ph
		}
	}
	t.Fatalf("no %q phase in report %+v", name, rep.Phases)
	return PhaseResult{}
}

func TestRunBackfillPrepsEverything(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t,
		qualified("1", "Acme", "Engineer", 90),
		qualified("2", "Globex", "Analyst", 80),
		qualified("3", "Initech", "PM", 70),
	)
	env.coord.Opts.PrepTop = 1
	env.coord.Opts.Backfill = true

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Prepped, 3, "backfill ignores the prep cap")

	doc := env.store.LoadState()
	assert.Len(t, doc.JobPipeline.PendingMaterials, 3)
}

func TestRunPrepsTopCandidates(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t,
		qualified("1", "Acme", "Engineer", 90),
		qualified("2", "Globex", "Analyst", 80),
		qualified("3", "Initech", "PM", 70),
	)
	env.coord.Opts.PrepTop = 2

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Prepped, 2)
	assert.Equal(t, "1", rep.Prepped[0].JobID)
	assert.Equal(t, "2", rep.Prepped[1].JobID)
	assert.Equal(t, phaseOK, phaseByName(t, rep, "prep").Status)

	doc := env.store.LoadState()
	require.Len(t, doc.JobPipeline.PendingMaterials, 2)
	assert.Equal(t, "Acme_Engineer", doc.JobPipeline.PendingMaterials[0].FolderName)

	listings := env.store.LoadListings()
	assert.Equal(t, models.StatusPrepped, listings.Listings["1"].Status)
	assert.Equal(t, "Acme_Engineer", listings.Listings["1"].ApplicationFolder)
	assert.NotEmpty(t, listings.Listings["1"].PreppedAt)
	assert.Equal(t, models.StatusQualified, listings.Listings["3"].Status, "below the cut stays qualified")

	fi, err := os.Stat(filepath.Join(env.coord.MaterialsDir, "Acme_Engineer"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	_, statErr := os.Stat(env.coord.LockPath)
	assert.True(t, os.IsNotExist(statErr), "lock must be released after the run")
}

func TestRunTwiceNeverDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t, qualified("1", "Acme", "Engineer", 90))

	_, err := env.coord.Run(context.Background())
	require.NoError(t, err)

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Prepped, "prepped listings are suppressed on the next run")

	doc := env.store.LoadState()
	assert.Len(t, doc.JobPipeline.PendingMaterials, 1)
}

func TestRunLeavesSubmittedAlone(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t, qualified("1", "Acme", "Engineer", 90))

	_, err := env.coord.Run(context.Background())
	require.NoError(t, err)

	// Simulate the operator approving the application between runs.
	doc := env.store.LoadState()
	entry := doc.JobPipeline.PendingMaterials[0]
	entry.SubmittedAt = models.Timestamp(time.Now())
	require.NoError(t, state.MoveTo(doc, entry, models.StageSubmittedApplications))
	require.NoError(t, env.store.SaveState(doc))

	_, err = env.coord.Run(context.Background())
	require.NoError(t, err)

	doc = env.store.LoadState()
	assert.Empty(t, doc.JobPipeline.PendingMaterials)
	require.Len(t, doc.JobPipeline.SubmittedApplications, 1)
	assert.Equal(t, "1", doc.JobPipeline.SubmittedApplications[0].JobID)
}

func TestDryRunTouchesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t, qualified("1", "Acme", "Engineer", 90))
	before, err := os.ReadFile(env.store.ListingsPath)
	require.NoError(t, err)

	env.coord.Opts.DryRun = true
	env.coord.Collab.Discovery = &fakeRunner{name: "discovery", available: true}

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Prepped, 1, "dry-run still reports what it would do")
	assert.True(t, rep.DryRun)
	assert.Equal(t, phaseSkipped, phaseByName(t, rep, "discovery").Status)

	_, statErr := os.Stat(env.store.StatePath)
	assert.True(t, os.IsNotExist(statErr), "dry-run must not create the state document")
	after, err := os.ReadFile(env.store.ListingsPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "dry-run must not rewrite listings")
	_, statErr = os.Stat(filepath.Join(env.coord.MaterialsDir, "Acme_Engineer"))
	assert.True(t, os.IsNotExist(statErr), "dry-run must not create folders")
	_, statErr = os.Stat(env.coord.LockPath)
	assert.True(t, os.IsNotExist(statErr), "dry-run must not take the lock")
}

func TestRunFailsClosedWhenLockHeld(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t, qualified("1", "Acme", "Engineer", 90))
	require.NoError(t, os.WriteFile(env.coord.LockPath, []byte(`{"pid":1}`), 0o644))

	rep, err := env.coord.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.NotEmpty(t, rep.Err)
	assert.True(t, rep.Failed())

	doc := env.store.LoadState()
	assert.Empty(t, doc.JobPipeline.PendingMaterials, "a refused run must not mutate state")
}

func TestCollabPhaseOutcomes(t *testing.T) {
	env := newTestEnv(t)
	env.seedQualified(t, qualified("1", "Acme", "Engineer", 90))
	env.coord.Collab.Discovery = &fakeRunner{name: "discovery", available: true, stdout: "found 7 listings\n"}
	env.coord.Collab.Qualify = &fakeRunner{name: "qualify", available: true, exitCode: 2}

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err, "phase failures stay inside the report")

	disc := phaseByName(t, rep, "discovery")
	assert.Equal(t, phaseOK, disc.Status)
	assert.Equal(t, "found 7 listings", disc.Detail)

	assert.Equal(t, phaseSkipped, phaseByName(t, rep, "scrape").Status)

	qual := phaseByName(t, rep, "qualify")
	assert.Equal(t, phaseFailed, qual.Status)
	assert.Contains(t, qual.Detail, "exit code 2")

	assert.True(t, rep.Failed())
	assert.Equal(t, phaseOK, phaseByName(t, rep, "prep").Status, "later phases still run")
	assert.Len(t, rep.Prepped, 1)
}

func TestCollabPhaseSpawnError(t *testing.T) {
	env := newTestEnv(t)
	env.coord.Collab.Scrape = &fakeRunner{name: "scrape", available: true, runErr: errors.New("fork failed")}

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)

	ph := phaseByName(t, rep, "scrape")
	assert.Equal(t, phaseFailed, ph.Status)
	require.Len(t, ph.Errors, 1)
	assert.Contains(t, ph.Errors[0], "fork failed")
}

func TestCollabPhaseUnavailableTool(t *testing.T) {
	env := newTestEnv(t)
	env.coord.Collab.Discovery = &fakeRunner{name: "discovery", available: false}

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)
	ph := phaseByName(t, rep, "discovery")
	assert.Equal(t, phaseSkipped, ph.Status)
	assert.Equal(t, "tool not installed", ph.Detail)
}

func TestWritePhaseTargetsMissingDrafts(t *testing.T) {
	env := newTestEnv(t)
	env.coord.Opts.PrepTop = 0
	env.coord.Opts.WriteTop = 5
	writer := &fakeRunner{name: "write", available: true}
	env.coord.Collab.Write = writer

	// One folder already has both drafts, the other has nothing.
	done := filepath.Join(env.coord.MaterialsDir, "Globex_Analyst")
	require.NoError(t, os.MkdirAll(done, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(done, "Cover_Letter_v1.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(done, "Resume_v1.md"), []byte("x"), 0o644))

	doc := &models.StateDoc{}
	doc.JobPipeline.PendingMaterials = []models.PipelineEntry{
		{JobID: "1", Company: "Acme", FolderName: "Acme_Engineer"},
		{JobID: "2", Company: "Globex", FolderName: "Globex_Analyst"},
	}
	require.NoError(t, env.store.SaveState(doc))

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, writer.calls, 1, "only the folder missing drafts gets written")
	assert.Equal(t, []string{"--folder", "Acme_Engineer", "--job-id", "1"}, writer.calls[0])
	assert.Equal(t, []string{"Acme_Engineer"}, rep.Written)
}

func TestWriteTargetsHonorsMax(t *testing.T) {
	doc := &models.StateDoc{}
	doc.JobPipeline.PendingMaterials = []models.PipelineEntry{
		{JobID: "1", FolderName: "A"},
		{JobID: "2", FolderName: "B"},
		{JobID: "3", FolderName: "C"},
	}
	got := writeTargets(doc, "/nonexistent", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].JobID)
	assert.Equal(t, "2", got[1].JobID)
}

func TestFollowUpPhaseStampsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.coord.Opts.PrepTop = 0
	env.coord.Opts.FollowUpAfter = 14 * 24 * time.Hour

	doc := &models.StateDoc{}
	doc.JobPipeline.SubmittedApplications = []models.PipelineEntry{
		{JobID: "old", Company: "Acme", SubmittedAt: models.Timestamp(time.Now().Add(-15 * 24 * time.Hour))},
		{JobID: "fresh", Company: "Globex", SubmittedAt: models.Timestamp(time.Now().Add(-2 * 24 * time.Hour))},
	}
	require.NoError(t, env.store.SaveState(doc))

	rep, err := env.coord.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.FollowUps, 1)
	assert.Equal(t, "q_job_old", rep.FollowUps[0].QueueID)
	assert.NotEmpty(t, rep.FollowUps[0].TaskID)

	doc = env.store.LoadState()
	var old models.PipelineEntry
	for _, e := range doc.JobPipeline.SubmittedApplications {
		if e.JobID == "old" {
			old = e
		}
	}
	assert.NotEmpty(t, old.FollowUpTaskID)
	assert.NotEmpty(t, old.FollowUpCreatedAt)

	// Second run: the stamp suppresses a duplicate task.
	rep, err = env.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.FollowUps)
}

func TestSyncFollowUpsSinkFailureRetries(t *testing.T) {
	doc := &models.StateDoc{}
	doc.JobPipeline.SubmittedApplications = []models.PipelineEntry{
		{JobID: "1", SubmittedAt: models.Timestamp(time.Now().Add(-30 * 24 * time.Hour))},
	}

	sink := &failingSink{err: errors.New("db locked")}
	created, errs := SyncFollowUps(doc, sink, 14*24*time.Hour, false, time.Now())
	assert.Empty(t, created)
	require.Len(t, errs, 1)
	assert.Empty(t, doc.JobPipeline.SubmittedApplications[0].FollowUpTaskID,
		"a failed sink call leaves the entry unstamped for retry")

	sink.err = nil
	created, errs = SyncFollowUps(doc, sink, 14*24*time.Hour, false, time.Now())
	assert.Empty(t, errs)
	require.Len(t, created, 1)
	assert.Equal(t, "task-1", created[0].TaskID)
}

func TestSyncFollowUpsDryRun(t *testing.T) {
	doc := &models.StateDoc{}
	doc.JobPipeline.SubmittedApplications = []models.PipelineEntry{
		{JobID: "1", SubmittedAt: models.Timestamp(time.Now().Add(-30 * 24 * time.Hour))},
	}

	created, errs := SyncFollowUps(doc, nil, 14*24*time.Hour, true, time.Now())
	assert.Empty(t, errs)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].TaskID)
	assert.Empty(t, doc.JobPipeline.SubmittedApplications[0].FollowUpCreatedAt,
		"dry-run must not stamp entries")
}

type failingSink struct {
	err   error
	calls int
}

func (s *failingSink) CreateFollowUp(entry models.PipelineEntry, dueAt time.Time) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "task-" + entry.JobID, nil
}

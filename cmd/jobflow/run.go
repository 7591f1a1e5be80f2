package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobflow/internal/collab"
	"jobflow/internal/config"
	"jobflow/internal/events"
	"jobflow/internal/history"
	"jobflow/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long: `Runs the collaborator phases (discovery, scrape, qualify), then
auto-preps the best qualified listings, invokes the draft writer for
pending applications missing materials and creates follow-up tasks for
aging submissions. The whole run holds the pipeline lock; a second run
started concurrently waits and then gives up.`,
	RunE: runRun,
}

var (
	runPrepTop   int
	runWriteTop  int
	runBackfill  bool
	runNoFresh   bool
	runNoScrape  bool
	runNoQualify bool
	runNoWrite   bool
	runLockMS    int
	runDryRun    bool
)

func init() {
	runCmd.Flags().IntVar(&runPrepTop, "prep-top", -1, "Listings to auto-prep, 0 disables (-1 uses config)")
	runCmd.Flags().IntVar(&runWriteTop, "write-top", -1, "Applications to auto-write, 0 disables (-1 uses config)")
	runCmd.Flags().BoolVar(&runBackfill, "backfill", false, "Prep every qualified listing, ignoring the cap")
	runCmd.Flags().BoolVar(&runNoFresh, "no-fresh", false, "Skip the discovery phase")
	runCmd.Flags().BoolVar(&runNoScrape, "no-scrape", false, "Skip the scrape phase")
	runCmd.Flags().BoolVar(&runNoQualify, "no-qualify", false, "Skip the qualify phase")
	runCmd.Flags().BoolVar(&runNoWrite, "no-write", false, "Skip the auto-write phase")
	runCmd.Flags().IntVar(&runLockMS, "lock-timeout-ms", -1, "How long to wait for the pipeline lock (-1 uses config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Report what the run would do without touching anything")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := optsFromConfig(cfg)
	opts.DryRun = runDryRun
	opts.Backfill = runBackfill
	if runPrepTop >= 0 {
		opts.PrepTop = runPrepTop
	}
	if runWriteTop >= 0 {
		opts.WriteTop = runWriteTop
	}
	if runLockMS >= 0 {
		opts.LockTimeout = time.Duration(runLockMS) * time.Millisecond
	}

	coord := &pipeline.Coordinator{
		Store:        newStore(cfg),
		MaterialsDir: cfg.Paths.Materials,
		LockPath:     cfg.Paths.Lock,
		Collab:       buildCollaborators(cfg, runNoFresh, runNoScrape, runNoQualify, runNoWrite),
		Tiers:        tiersFromConfig(cfg),
		Opts:         opts,
	}

	// Dry runs leave no trace, including no history database.
	var hist *history.Store
	if !runDryRun {
		h, err := history.New(cfg.Paths.HistoryDB)
		if err != nil {
			log.Printf("history: %v (run continues without it)", err)
		} else {
			hist = h
			defer hist.Close()
			coord.Sink = hist
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, runErr := coord.Run(ctx)
	if rep != nil {
		// Lock-timeout reports are still recorded so history shows the
		// contention, but only completed runs announce themselves.
		if hist != nil {
			recordRun(hist, rep)
		}
		if !runDryRun && runErr == nil {
			publishEvent(cfg, events.RunCompleted, rep)
			if err := newNotifier(cfg).Send(runSummary(rep)); err != nil {
				log.Printf("telegram: %v", err)
			}
		}
		if jsonOut {
			if err := printJSON(rep); err != nil {
				return err
			}
		} else {
			printReport(rep)
		}
	}
	return runErr
}

// optsFromConfig maps the config file's run section onto coordinator
// options. Flag overrides are applied on top by the callers.
func optsFromConfig(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		PrepTop:          cfg.Run.PrepTop,
		WriteTop:         cfg.Run.WriteTop,
		WaitAfterQualify: cfg.WaitAfterQualify(),
		FollowUpAfter:    cfg.FollowUpAfter(),
		LockTimeout:      cfg.LockTimeout(),
	}
}

func tiersFromConfig(cfg *config.Config) pipeline.TierList {
	return pipeline.TierList{
		Target:  cfg.Tiers.Target,
		Stretch: cfg.Tiers.Stretch,
		Known:   cfg.Tiers.Known,
	}
}

// buildCollaborators turns configured command lines into runners,
// honoring the per-phase skip flags. The shared document paths travel
// in the environment so collaborator scripts find them without flags.
func buildCollaborators(cfg *config.Config, noFresh, noScrape, noQualify, noWrite bool) pipeline.Collaborators {
	env := []string{
		config.EnvStatePath + "=" + cfg.Paths.State,
		config.EnvListingsPath + "=" + cfg.Paths.Listings,
		config.EnvMaterialsDir + "=" + cfg.Paths.Materials,
	}
	mk := func(name, cmdline string, skip bool) collab.Runner {
		if skip || strings.TrimSpace(cmdline) == "" {
			return nil
		}
		r, err := collab.NewExecRunner(name, cmdline, "")
		if err != nil {
			log.Printf("collaborator %s: %v", name, err)
			return nil
		}
		r.SetEnv(env)
		return r
	}
	return pipeline.Collaborators{
		Discovery: mk("discovery", cfg.Collab.Discovery, noFresh),
		Scrape:    mk("scrape", cfg.Collab.Scrape, noScrape),
		Qualify:   mk("qualify", cfg.Collab.Qualify, noQualify),
		Write:     mk("write", cfg.Collab.Write, noWrite),
	}
}

// recordRun persists the run summary plus the full report JSON.
func recordRun(hist *history.Store, rep *pipeline.Report) {
	body, err := json.Marshal(rep)
	if err != nil {
		body = nil
	}
	rec := history.RunRecord{
		ID:         rep.RunID,
		StartedAt:  rep.StartedAt,
		DurationMS: rep.DurationMS,
		DryRun:     rep.DryRun,
		Prepped:    len(rep.Prepped),
		Written:    len(rep.Written),
		FollowUps:  len(rep.FollowUps),
		Failed:     rep.Failed(),
		ReportJSON: string(body),
	}
	if err := hist.RecordRun(rec); err != nil {
		log.Printf("history: %v", err)
	}
}

func runSummary(rep *pipeline.Report) string {
	status := "completed"
	if rep.Failed() {
		status = "had failures"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>jobflow run %s</b>\nprepped %d, wrote %d, follow-ups %d",
		status, len(rep.Prepped), len(rep.Written), len(rep.FollowUps))
	for _, f := range rep.FollowUps {
		name := f.Company
		if name == "" {
			name = f.QueueID
		}
		fmt.Fprintf(&b, "\nfollow up with %s", name)
	}
	return b.String()
}

func printReport(rep *pipeline.Report) {
	if rep.DryRun {
		fmt.Println("dry run, nothing written")
	}
	for _, ph := range rep.Phases {
		fmt.Println(strings.TrimRight(fmt.Sprintf("%-10s %-8s %s", ph.Name, ph.Status, ph.Detail), " "))
		for _, e := range ph.Errors {
			fmt.Printf("           error: %s\n", e)
		}
	}
	for _, p := range rep.Prepped {
		fmt.Printf("prepped %s -> %s\n", p.JobID, p.Folder)
	}
	for _, f := range rep.Written {
		fmt.Printf("wrote drafts for %s\n", f)
	}
	for _, f := range rep.FollowUps {
		fmt.Printf("follow-up due for %s (%s)\n", f.Company, f.QueueID)
	}
	if rep.Err != "" {
		fmt.Printf("error: %s\n", rep.Err)
	}
}

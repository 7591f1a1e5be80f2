package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"jobflow/internal/config"
	"jobflow/internal/events"
	"jobflow/internal/history"
	"jobflow/internal/pipeline"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pipeline on a schedule",
	Long: `Starts a foreground scheduler that executes a full pipeline run
immediately and then on every interval, until interrupted. Each run
takes the pipeline lock, so a tick that overlaps a manual run simply
waits and gives up like any other contender.`,
	RunE: runDaemon,
}

var daemonEvery time.Duration

func init() {
	daemonCmd.Flags().DurationVar(&daemonEvery, "every", 6*time.Hour, "Interval between runs")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Printf("jobflow daemon starting, running every %s", daemonEvery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New(cron.WithLogger(cron.DefaultLogger))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", daemonEvery), func() {
		daemonTick(ctx, cfg)
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	c.Start()

	// First run immediately; the cron only fires after one interval.
	go daemonTick(ctx, cfg)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down", sig)

	cancel()
	<-c.Stop().Done()
	log.Println("daemon stopped")
	return nil
}

// daemonTick is one scheduled pipeline run. Failures are logged, never
// fatal: the daemon's job is to keep trying on schedule.
func daemonTick(ctx context.Context, cfg *config.Config) {
	coord := &pipeline.Coordinator{
		Store:        newStore(cfg),
		MaterialsDir: cfg.Paths.Materials,
		LockPath:     cfg.Paths.Lock,
		Collab:       buildCollaborators(cfg, false, false, false, false),
		Tiers:        tiersFromConfig(cfg),
		Opts:         optsFromConfig(cfg),
	}

	hist, err := history.New(cfg.Paths.HistoryDB)
	if err != nil {
		log.Printf("history: %v (run continues without it)", err)
	} else {
		defer hist.Close()
		coord.Sink = hist
	}

	rep, err := coord.Run(ctx)
	if rep != nil && hist != nil {
		recordRun(hist, rep)
	}
	if err != nil {
		log.Printf("run: %v", err)
		return
	}
	publishEvent(cfg, events.RunCompleted, rep)
	if err := newNotifier(cfg).Send(runSummary(rep)); err != nil {
		log.Printf("telegram: %v", err)
	}
	log.Printf("run %s: prepped %d, wrote %d, follow-ups %d, failed=%v",
		truncateID(rep.RunID), len(rep.Prepped), len(rep.Written), len(rep.FollowUps), rep.Failed())
}

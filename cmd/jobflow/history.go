package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobflow/internal/config"
	"jobflow/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs",
	RunE:  runHistory,
}

var histLimit int

func init() {
	historyCmd.Flags().IntVar(&histLimit, "limit", 20, "Number of runs to show")
}

// openHistory opens the run history store without creating it: commands
// that only read should not leave an empty database behind.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if _, err := os.Stat(cfg.Paths.HistoryDB); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return history.New(cfg.Paths.HistoryDB)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if hist == nil {
		fmt.Println("No runs recorded yet")
		return nil
	}
	defer hist.Close()

	runs, err := hist.ListRuns(histLimit)
	if err != nil {
		return err
	}

	if jsonOut {
		if runs == nil {
			runs = []history.RunRecord{}
		}
		return printJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tTOOK\tRESULT\tPREPPED\tWROTE\tFOLLOW-UPS")
	for _, r := range runs {
		result := "ok"
		if r.Failed {
			result = "failed"
		}
		if r.DryRun {
			result += " (dry)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			truncateID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
			result, r.Prepped, r.Written, r.FollowUps)
	}
	w.Flush()
	return nil
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobflow/internal/history"
)

var followupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "List or close follow-up tasks",
	Long: `Lists open follow-up tasks created by the run command for aging
submissions. --done closes one by id; --days limits the listing to
tasks due within that many days.`,
	RunE: runFollowups,
}

var (
	fuDays int
	fuDone string
	fuAll  bool
)

func init() {
	followupsCmd.Flags().IntVar(&fuDays, "days", 0, "Only tasks due within N days (0 shows all)")
	followupsCmd.Flags().StringVar(&fuDone, "done", "", "Mark this task id done")
	followupsCmd.Flags().BoolVar(&fuAll, "all", false, "Include completed tasks")
}

func runFollowups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if hist == nil {
		fmt.Println("No follow-up tasks yet")
		return nil
	}
	defer hist.Close()

	if fuDone != "" {
		if err := hist.MarkFollowUpDone(fuDone); err != nil {
			return err
		}
		fmt.Printf("Closed follow-up %s\n", fuDone)
		return nil
	}

	tasks, err := hist.ListFollowUps(fuAll)
	if err != nil {
		return err
	}
	if fuDays > 0 {
		cutoff := time.Now().Add(time.Duration(fuDays) * 24 * time.Hour)
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.DueAt.Before(cutoff) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	if jsonOut {
		if tasks == nil {
			tasks = []history.FollowUpTask{}
		}
		return printJSON(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("No follow-up tasks found")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMPANY\tTITLE\tDUE\tQUEUE")
	for _, t := range tasks {
		due := t.DueAt.Format("2006-01-02")
		if t.DoneAt != nil {
			due += " (done)"
		} else if t.DueAt.Before(now) {
			due += " (overdue)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(t.ID), truncate(t.Company, 24), truncate(t.Title, 32), due, t.QueueID)
	}
	w.Flush()
	return nil
}

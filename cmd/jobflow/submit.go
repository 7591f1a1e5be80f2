package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jobflow/internal/review"
)

var submitCmd = &cobra.Command{
	Use:   "submit [index]",
	Short: "Record an application as submitted",
	Long: `Moves one application into submitted_applications and stamps the
submission time. approve does the same through the review cursor; this
command targets any entry directly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

var (
	submitQueueID string
	submitJobID   string
	submitFolder  string
	submitDryRun  bool
)

func init() {
	submitCmd.Flags().StringVar(&submitQueueID, "queue-id", "", "Select by queue id")
	submitCmd.Flags().StringVar(&submitJobID, "job-id", "", "Select by job id")
	submitCmd.Flags().StringVar(&submitFolder, "folder", "", "Select by application folder name")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Compute the move without writing anything")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	sel := review.TargetSelector{
		QueueID: submitQueueID,
		JobID:   submitJobID,
		Folder:  submitFolder,
	}
	if len(args) == 1 {
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be a number, got %q", args[0])
		}
		sel.Index = idx
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newStore(cfg)
	doc := st.LoadState()
	listings := st.LoadListings()

	target, err := review.ResolveTarget(doc, listings, sel)
	if err != nil {
		return err
	}

	res, err := review.Submit(doc, listings, target)
	if err != nil {
		return err
	}

	if !submitDryRun {
		if err := st.SaveState(doc); err != nil {
			return err
		}
		if err := st.SaveListings(listings); err != nil {
			return err
		}
		mirrorSubmission(cfg, res.Entry)
	}

	if jsonOut {
		return printJSON(res)
	}
	fmt.Printf("submitted %s\n", entryLabel(res.Entry))
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobflow/internal/events"
	"jobflow/internal/materials"
	"jobflow/internal/review"
)

var decisionCmd = &cobra.Command{
	Use:   "decision <approve|revise|skip|reject> [reason]",
	Short: "Act on the current review item",
	Long: `Applies a decision to the item under the review cursor, or to the one
named by --queue-id. approve submits the application, revise sends it
back to pending with a reason, skip moves the cursor to the next
unskipped item, reject removes it and archives the listing.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDecision,
}

var (
	decisionQueueID string
	decisionDryRun  bool
)

func init() {
	decisionCmd.Flags().StringVar(&decisionQueueID, "queue-id", "", "Act on this queue id instead of the cursor")
	decisionCmd.Flags().BoolVar(&decisionDryRun, "dry-run", false, "Compute the outcome without writing anything")
}

func runDecision(cmd *cobra.Command, args []string) error {
	verb, err := review.ParseDecision(args[0])
	if err != nil {
		return err
	}
	reason := ""
	if len(args) > 1 {
		reason = args[1]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newStore(cfg)
	doc := st.LoadState()
	listings := st.LoadListings()

	engine := &review.Engine{
		MaterialsDir: cfg.Paths.Materials,
		Submitter:    review.SubmitFunc(review.Submit),
		Notes: review.NoteFunc(func(folder, event, reason string) error {
			return materials.WriteAuditNote(cfg.Paths.Materials, folder, event, reason)
		}),
		DryRun: decisionDryRun,
	}

	res, err := engine.Decide(doc, listings, verb, reason, decisionQueueID)
	if err != nil {
		return err
	}

	if !decisionDryRun {
		if err := st.SaveState(doc); err != nil {
			return err
		}
		if err := st.SaveListings(listings); err != nil {
			return err
		}
		publishEvent(cfg, events.DecisionRecorded, res)
		if res.Submit != nil {
			mirrorSubmission(cfg, res.Submit.Entry)
		}
		if verb == review.DecisionReject {
			mirrorArchival(cfg, res.Target.Entry, reason)
		}
	}

	if jsonOut {
		return printJSON(res)
	}

	fmt.Printf("%s %s\n", pastTense(res.Decision), itemLabel(*res.Target))
	if res.Reason != "" {
		fmt.Printf("  reason: %s\n", res.Reason)
	}
	if res.Next != nil {
		fmt.Printf("next: %s (%d in queue)\n", itemLabel(*res.Next), res.QueueLen)
	} else {
		fmt.Println("review queue is empty")
	}
	return nil
}

func pastTense(d review.Decision) string {
	switch d {
	case review.DecisionApprove:
		return "approved"
	case review.DecisionRevise:
		return "sent back"
	case review.DecisionSkip:
		return "skipped"
	case review.DecisionReject:
		return "rejected"
	}
	return string(d)
}

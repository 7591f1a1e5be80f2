package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jobflow/internal/events"
	"jobflow/internal/review"
)

var materialsReadyCmd = &cobra.Command{
	Use:   "materials-ready [index]",
	Short: "Mark an application's materials as ready for review",
	Long: `Moves one pending application into materials_ready once its cover
letter and resume are final. The target is the numbered index printed
by status, or exactly one of the selector flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMaterialsReady,
}

var (
	mrQueueID string
	mrJobID   string
	mrFolder  string
	mrCompany string
	mrDryRun  bool
)

func init() {
	materialsReadyCmd.Flags().StringVar(&mrQueueID, "queue-id", "", "Select by queue id")
	materialsReadyCmd.Flags().StringVar(&mrJobID, "job-id", "", "Select by job id")
	materialsReadyCmd.Flags().StringVar(&mrFolder, "folder", "", "Select by application folder name")
	materialsReadyCmd.Flags().StringVar(&mrCompany, "company", "", "Select by company name substring")
	materialsReadyCmd.Flags().BoolVar(&mrDryRun, "dry-run", false, "Compute the move without writing anything")
}

func runMaterialsReady(cmd *cobra.Command, args []string) error {
	sel := review.TargetSelector{
		QueueID: mrQueueID,
		JobID:   mrJobID,
		Folder:  mrFolder,
		Company: mrCompany,
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

	res, err := review.MaterialsReady(doc, listings, target)
	if err != nil {
		return err
	}

	if !mrDryRun && !res.Already {
		if err := st.SaveState(doc); err != nil {
			return err
		}
		if err := st.SaveListings(listings); err != nil {
			return err
		}
		publishEvent(cfg, events.MaterialsReady, res)
	}

	if jsonOut {
		return printJSON(res)
	}
	if res.Already {
		fmt.Printf("%s is already materials-ready\n", entryLabel(res.Entry))
	} else {
		fmt.Printf("materials ready: %s\n", entryLabel(res.Entry))
	}
	return nil
}

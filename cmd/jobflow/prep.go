package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"jobflow/internal/materials"
	"jobflow/internal/pipeline"
)

var prepCmd = &cobra.Command{
	Use:   "prep <job-id>",
	Short: "Pull a qualified listing into the pipeline",
	Long: `Creates the pending_materials entry for a listing, assigns its
application folder and marks the listing prepped. The run command does
this automatically for the best qualified listings; prep targets one by
hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrep,
}

var (
	prepFolder string
	prepDryRun bool
)

func init() {
	prepCmd.Flags().StringVar(&prepFolder, "folder", "", "Materials folder name (default Company_Title)")
	prepCmd.Flags().BoolVar(&prepDryRun, "dry-run", false, "Compute the entry without writing anything")
}

func runPrep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newStore(cfg)
	doc := st.LoadState()
	listings := st.LoadListings()

	res, err := pipeline.Prep(doc, listings, args[0], prepFolder, time.Now())
	if err != nil {
		return err
	}

	if !prepDryRun {
		if err := st.SaveState(doc); err != nil {
			return err
		}
		if err := st.SaveListings(listings); err != nil {
			return err
		}
		if _, err := materials.EnsureFolder(cfg.Paths.Materials, res.Folder); err != nil {
			log.Printf("materials folder: %v", err)
		}
	}

	if jsonOut {
		return printJSON(res)
	}
	fmt.Printf("prepped %s into %s\n", entryLabel(res.Entry), res.Folder)
	return nil
}

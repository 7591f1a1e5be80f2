package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"jobflow/internal/config"
	"jobflow/internal/state"
)

var version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "jobflow",
	Short: "jobflow - personal job application pipeline",
	Long: `jobflow tracks job applications through a staged pipeline: external
collaborator tools discover and qualify listings, materials are drafted
into per-application folders, and review decisions move applications
from pending to submitted. Every command reads and rewrites the shared
JSON documents atomically, so commands can be run in any order.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	cfgPath string
	jsonOut bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Machine-readable JSON output")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(materialsReadyCmd)
	rootCmd.AddCommand(prepCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(followupsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the jobflow version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobflow %s\n", version)
		fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Go version: %s\n", runtime.Version())
	},
}

// loadConfig reads the operator config from --config or the
// conventional location. A missing file yields the defaults.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

func newStore(cfg *config.Config) *state.Store {
	return state.NewStore(cfg.Paths.State, cfg.Paths.Listings)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/overstreetbilly/snapgram/config"
	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/spf13/cobra"
)

var (
	// gc flags
	minAge time.Duration
	dryRun bool
)

// gcCmd deletes stored files that no post references
var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete orphaned media files",
	Long: `Delete stored files older than --min-age that no post references.
Deleting a post keeps its file, so orphans accumulate until swept.

Examples:
  snapgramctl gc --dry-run            # List orphans without deleting
  snapgramctl gc --min-age 72h        # Only files older than three days`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connect(); err != nil {
			return err
		}
		defer db.CloseDB()

		container, err := services.NewContainer(cmd.Context(), config.AppConfig)
		if err != nil {
			return err
		}
		defer container.Close()

		report, err := services.SweepOrphans(cmd.Context(), container.Media, minAge, dryRun)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		}
		for _, id := range report.Orphaned {
			fmt.Fprintln(out, id)
		}
		fmt.Fprintf(out, "scanned: %d, orphaned: %d, deleted: %d, failed: %d\n",
			report.Scanned, len(report.Orphaned), report.Deleted, report.Failed)
		return nil
	},
}

func init() {
	gcCmd.Flags().DurationVar(&minAge, "min-age", 24*time.Hour, "Only consider files older than this")
	gcCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without deleting them")
	rootCmd.AddCommand(gcCmd)
}

package commands

import (
	"fmt"

	"github.com/overstreetbilly/snapgram/db"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		// ConnectDB уже применяет миграции
		if err := connect(); err != nil {
			return err
		}
		defer db.CloseDB()

		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package commands

import (
	"fmt"
	"os"

	"github.com/overstreetbilly/snapgram/config"
	"github.com/overstreetbilly/snapgram/db"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "snapgramctl",
	Short: "snapgram administration tool",
	Long: `snapgramctl runs maintenance tasks against a snapgram deployment:
schema migrations, background workers and storage cleanup.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "etc/app.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// connect загружает конфиг и подключается к БД (с миграциями)
func connect() error {
	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := db.ConnectDB(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	return nil
}

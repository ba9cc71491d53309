package commands

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/overstreetbilly/snapgram/config"
	"github.com/overstreetbilly/snapgram/db"
	"github.com/overstreetbilly/snapgram/services"

	"github.com/spf13/cobra"
)

var workerCount int

// workerCmd runs background consumers until interrupted
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run media cleanup workers and the post event consumer",
	Long: `Run the media cleanup queue workers (Redis) and the post event consumer
(RabbitMQ) until SIGINT or SIGTERM.

Examples:
  snapgramctl worker                  # Use feed.cleanup_workers from config
  snapgramctl worker --workers 4      # Override worker count`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connect(); err != nil {
			return err
		}
		defer db.CloseDB()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		container, err := services.NewContainer(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer container.Close()

		if container.Cleanup == nil && container.Rabbit == nil {
			return errors.New("neither redis nor rabbitmq is configured, nothing to run")
		}
		if workerCount > 0 {
			config.AppConfig.Feed.CleanupWorkers = workerCount
		}
		if err = container.StartBackground(ctx, config.AppConfig); err != nil {
			return err
		}

		log.Println("Workers started")
		<-ctx.Done()
		log.Println("Workers stopping")
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerCount, "workers", 0, "Number of cleanup workers")
	rootCmd.AddCommand(workerCmd)
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/routing"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Starts the periodic sync scheduler.",
	Long: `Enqueues a sync job on the configured interval so the warehouse stays
fresh without anyone calling the API. Jobs are skipped while the request
queue backlog is full.`,
	Run: func(cmd *cobra.Command, args []string) {
		config, _ := cmd.Context().Value("config").(*model.Config)
		if config == nil {
			log.Fatal("Configuration not found in context. Ensure rootCmd PersistentPreRun is setting it.")
		}
		logger := logging.NewLogger(config.Server.LogLevel, "component", "scheduler")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if err := routing.NewSchedulerFlow(ctx, config); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create scheduler flow")
		}
		logger.Info().Str("interval", config.Scheduler.Interval).Msg("Scheduler started")

		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok\n"))
			})
			serverAddr := fmt.Sprintf(":%d", resolvePort(config))
			_ = http.ListenAndServe(serverAddr, nil)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("Shutting down scheduler...")
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.Flags().IntVarP(&httpPort, "port", "p", 0, "Port for the health endpoint")
}

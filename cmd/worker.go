package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/routing"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the sync worker.",
	Long: `Consumes sync jobs from the Redis request stream, pulls ad insights from
StackAdapt, loads them into BigQuery and replies with the sync report.
One consumer loop keeps runs serialized.`,
	Run: func(cmd *cobra.Command, args []string) {
		config, _ := cmd.Context().Value("config").(*model.Config)
		if config == nil {
			log.Fatal("Configuration not found in context. Ensure rootCmd PersistentPreRun is setting it.")
		}
		logger := logging.NewLogger(config.Server.LogLevel, "component", "worker")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		databaseContext, err := model.NewDatabaseContext(&config.Database, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("dsn", config.Database.MaskedDsn()).Msg("Failed to open database")
		}
		if err := databaseContext.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database")
		}

		runner, err := routing.NewSyncRunner(ctx, config, databaseContext)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create sync runner")
		}
		if _, err := runner.WithAdvertiserCache(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create advertiser cache")
		}
		if err := integrations.TryConnectServices(ctx, 10, 6*time.Second, runner.Services(), logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect services")
		}

		rdb, err := integrations.NewRedisClient(config.Redis.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create redis client")
		}
		server, err := integrations.NewRedisGtrsServer[model.SyncJob, model.SyncReport](
			ctx, rdb, config.Publisher.RequestQueue, config.Publisher.ResponseQueue,
			config.Worker.GroupName, config.Worker.ConsumerName)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create queue consumer")
		}

		go server.ProcessRequest(ctx, runner.Handle)
		logger.Info().Str("queue", config.Publisher.RequestQueue).Msg("Worker started, waiting for sync jobs")

		// health and metrics endpoint for the deployment
		go func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok\n"))
			})
			mux.Handle("/metrics", promhttp.Handler())
			serverAddr := fmt.Sprintf(":%d", resolvePort(config))
			if err := http.ListenAndServe(serverAddr, mux); err != nil {
				logger.Fatal().Err(err).Msg("Failed to start health endpoint")
			}
		}()

		// Wait for interrupt signal to gracefully shut down.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("Shutting down worker...")
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().IntVarP(&httpPort, "port", "p", 0, "Port for the health endpoint")
}

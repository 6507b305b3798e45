package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/routing"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/spf13/cobra"
)

var (
	syncDaysBack    int
	syncBulk        bool
	syncDataset     string
	syncProject     string
	syncAdvertisers string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Runs one sync directly, without the queue.",
	Long: `Pulls ad insights from StackAdapt and loads them into BigQuery in one go.
Meant for backfills and local runs, the job bypasses the request queue and
no run history is persisted.`,
	Run: func(cmd *cobra.Command, args []string) {
		config, _ := cmd.Context().Value("config").(*model.Config)
		if config == nil {
			log.Fatal("Configuration not found in context. Ensure rootCmd PersistentPreRun is setting it.")
		}
		logger := logging.NewLogger(config.Server.LogLevel, "component", "sync")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// no database and no redis cache, CLI runs stand alone
		runner, err := routing.NewSyncRunner(ctx, config, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create sync runner")
		}
		if err := integrations.TryConnectServices(ctx, 3, 2*time.Second, runner.Services(), logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect services")
		}

		job := model.SyncJob{
			JobId:       uuid.New().String(),
			Trigger:     model.TriggerCli,
			DaysBack:    syncDaysBack,
			UseBulk:     syncBulk,
			DatasetID:   syncDataset,
			ProjectID:   syncProject,
			Advertisers: syncAdvertisers,
			Created:     time.Now().UTC(),
		}

		report := runner.Run(ctx, job)
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		if report.Status != model.StatusSuccess {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntVar(&syncDaysBack, "days-back", 30, "Days back from today to sync")
	syncCmd.Flags().BoolVar(&syncBulk, "bulk", true, "One bulk query for all advertisers")
	syncCmd.Flags().StringVar(&syncDataset, "dataset", "", "Target dataset, defaults to the configured one")
	syncCmd.Flags().StringVar(&syncProject, "project", "", "Target project, defaults to the credentials project")
	syncCmd.Flags().StringVar(&syncAdvertisers, "advertisers", "", "Comma separated advertiser IDs, empty means all")
}

package integrations

import (
	"fmt"

	"github.com/admetric/stacksync/pkg/model"
	"github.com/rs/zerolog/log"
)

// SaveSyncRun upserts the run history row for a job, keyed on JobId.
func SaveSyncRun(databaseContext *model.DatabaseContext, run *model.SyncRun) error {
	var value model.SyncRun
	var query = model.SyncRun{
		JobId: run.JobId,
	}
	if err := databaseContext.DB.Find(&value, &query).Error; err != nil {
		log.Error().Err(err).Msg("Failed to query sync runs")
		return fmt.Errorf("failed to query sync runs: %w", err)
	}
	if value.JobId == "" {
		log.Info().Str("jobId", run.JobId).Msg("Creating sync run record")
		tx := databaseContext.DB.Create(run)
		if tx.Error != nil {
			log.Error().Err(tx.Error).Msg("Failed to save sync run in database")
			return fmt.Errorf("failed to save sync run: %w", tx.Error)
		}
	} else {
		log.Info().Str("jobId", run.JobId).Msg("Updating existing sync run record")
		run.ID = value.ID
		run.CreatedAt = value.CreatedAt
		tx := databaseContext.DB.Save(run)
		if tx.Error != nil {
			log.Error().Err(tx.Error).Msg("Failed to update sync run in database")
			return fmt.Errorf("failed to update sync run: %w", tx.Error)
		}
	}
	return nil
}

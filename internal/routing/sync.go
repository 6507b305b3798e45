package routing

import (
	"context"
	"errors"
	"time"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/internal/integrations/cache"
	"github.com/admetric/stacksync/internal/integrations/stackadapt"
	"github.com/admetric/stacksync/internal/integrations/streams"
	"github.com/admetric/stacksync/internal/integrations/warehouse"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/utils"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reugn/go-streams/flow"
	"github.com/rs/zerolog"
)

const defaultBatchSize = 500

// SyncRunner executes one sync job end to end: fetch ad insights from
// StackAdapt, flatten them, stage the rows in the temp table and merge them
// into the main table.
type SyncRunner struct {
	Config          *model.Config
	Logger          *zerolog.Logger
	DatabaseContext *model.DatabaseContext

	Source *stackadapt.Client
	Loader *warehouse.AdsLoader
	Cache  *cache.AdvertiserCache

	syncRuns    *prometheus.CounterVec
	syncRecords prometheus.Counter
}

func NewSyncRunner(ctx context.Context, cfg *model.Config, databaseContext *model.DatabaseContext) (*SyncRunner, error) {
	logger := logging.NewLogger(cfg.Server.LogLevel, "component", "SyncRunner")

	source, err := stackadapt.NewClient(&cfg.StackAdapt, logger)
	if err != nil {
		return nil, err
	}
	client, err := warehouse.NewClient(ctx, &cfg.BigQuery, logger)
	if err != nil {
		return nil, err
	}

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stacksync_runs_total",
		Help: "Counter for finished sync runs by trigger and status",
	}, []string{"trigger", "status"})
	if err := prometheus.Register(syncRuns); err != nil {
		logger.Warn().Msg("Failed to register stacksync_runs_total metric, duplicate registration?")
	}
	syncRecords := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stacksync_records_total",
		Help: "Counter for ad performance rows loaded into the warehouse",
	})
	if err := prometheus.Register(syncRecords); err != nil {
		logger.Warn().Msg("Failed to register stacksync_records_total metric, duplicate registration?")
	}

	return &SyncRunner{
		Config:          cfg,
		Logger:          logger,
		DatabaseContext: databaseContext,
		Source:          source,
		Loader:          warehouse.NewAdsLoader(client, &cfg.BigQuery),
		syncRuns:        syncRuns,
		syncRecords:     syncRecords,
	}, nil
}

// WithAdvertiserCache attaches the redis advertiser ID cache. Queue workers
// use it, CLI runs skip it and work without redis.
func (sr *SyncRunner) WithAdvertiserCache() (*SyncRunner, error) {
	expiry, err := time.ParseDuration(sr.Config.StackAdapt.AdvertiserCacheExpiry)
	if err != nil {
		expiry = time.Hour
	}
	kvc, err := cache.NewAdvertiserCache(sr.Config.Redis.DSN, expiry, sr.Logger)
	if err != nil {
		return nil, err
	}
	sr.Cache = kvc
	return sr, nil
}

// Services returns the integrations the runner depends on, for the startup
// connect loop.
func (sr *SyncRunner) Services() []integrations.ServiceInterface {
	services := []integrations.ServiceInterface{sr.Source, sr.Loader.Client}
	if sr.Cache != nil {
		services = append(services, sr.Cache)
	}
	return services
}

// Handle adapts Run for the request queue consumer.
func (sr *SyncRunner) Handle(job model.SyncJob) model.SyncReport {
	ctx := context.Background()
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	return sr.Run(ctx, job)
}

// Run executes the job and returns its report. Failures are encoded in the
// report so queue consumers always produce a reply.
func (sr *SyncRunner) Run(ctx context.Context, job model.SyncJob) model.SyncReport {
	elapsed := utils.ElapsedFunc()
	logger := sr.Logger.With().Str("jobId", job.JobId).Str("trigger", job.Trigger).Logger()

	dateFrom, dateTo := job.DateRange(time.Now().UTC())
	logger.Info().Str("dateFrom", dateFrom).Str("dateTo", dateTo).Bool("useBulk", job.UseBulk).Msg("Starting sync run")

	report := sr.run(ctx, job, dateFrom, dateTo, &logger)
	report.JobId = job.JobId
	report.DateFrom = dateFrom
	report.DateTo = dateTo
	report.Duration = elapsed()
	report.Finished = time.Now().UTC()

	sr.syncRuns.WithLabelValues(job.Trigger, report.Status).Inc()
	sr.syncRecords.Add(float64(report.RecordsSynced))

	// CLI runs have no database, history is kept only for server deployments
	if sr.DatabaseContext != nil {
		run := model.NewSyncRun(job, report)
		if err := integrations.SaveSyncRun(sr.DatabaseContext, &run); err != nil {
			logger.Error().Err(err).Msg("Failed to persist sync run")
		}
	}

	logger.Info().
		Str("status", report.Status).
		Int("records", report.RecordsSynced).
		Str("elapsed", utils.HumanDeltaMilisec(report.Duration)).
		Msg("Sync run finished")
	return report
}

func (sr *SyncRunner) run(ctx context.Context, job model.SyncJob, dateFrom, dateTo string, logger *zerolog.Logger) model.SyncReport {
	if err := sr.Source.Connect(ctx); err != nil {
		return failed("connect to StackAdapt", err)
	}

	advertisers, err := sr.advertiserIDs(ctx, job)
	if err != nil {
		return failed("fetch advertisers", err)
	}
	if len(advertisers) == 0 {
		return success("no advertisers visible to the API key", 0, false)
	}

	envelopes, err := sr.Source.FetchAllInsights(ctx, advertisers, job.UseBulk, dateFrom, dateTo)
	if err != nil {
		return failed("fetch ad insights", err)
	}
	if len(envelopes) == 0 {
		return success("no data found for the date range", 0, false)
	}

	loader, err := sr.loaderFor(ctx, job)
	if err != nil {
		return failed("prepare warehouse", err)
	}
	if err := loader.ReplaceTempTable(ctx); err != nil {
		return failed("replace temp table", err)
	}

	batchSize := sr.Config.Worker.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	handler := streams.NewAdRecordHandler()
	sink := streams.NewWarehouseSink(ctx, loader)
	streams.NewInsightSource(envelopes).
		Via(flow.NewFlatMap(handler.Flatten, 1)).
		Via(flow.NewMap(handler.Annotate, 1)).
		Via(flow.NewMap(handler.Tally, 1)).
		Via(flow.NewBatch[model.AdPerformanceRecord](batchSize, time.Second)).
		To(sink)
	sink.AwaitCompletion()
	handler.LogSummary()

	if err := sink.Err(); err != nil {
		return failed("load records", err)
	}
	if sink.Count() == 0 {
		return success("no rows to load", 0, false)
	}

	merged := true
	message := "sync complete"
	if err := loader.MergeIntoMain(ctx); err != nil {
		// staged rows survive in the temp table for a manual merge
		logger.Warn().Err(err).Msg("Merge failed, data remains in temp table")
		merged = false
		message = "sync complete, merge failed, data remains in temp table"
	}
	loader.LogTableInfo(ctx, loader.MainTable)
	loader.LogRunStats(ctx, loader.TempTable)

	return success(message, sink.Count(), merged)
}

// advertiserIDs resolves the advertiser set of a job: an explicit subset on
// the job wins, otherwise the cached list, otherwise the API.
func (sr *SyncRunner) advertiserIDs(ctx context.Context, job model.SyncJob) ([]string, error) {
	if ids := job.AdvertiserIDs(); len(ids) > 0 {
		return ids, nil
	}
	if sr.Cache != nil {
		if ids, err := sr.Cache.Get(ctx); err == nil {
			sr.Logger.Debug().Any("count", len(ids)).Msg("Using cached advertiser IDs")
			return ids, nil
		} else if !errors.Is(err, cache.ErrKeyNotFound) {
			sr.Logger.Warn().Err(err).Msg("Advertiser cache lookup failed")
		}
	}
	ids, err := sr.Source.AdvertiserIDs(ctx)
	if err != nil {
		return nil, err
	}
	if sr.Cache != nil && len(ids) > 0 {
		if err := sr.Cache.Put(ctx, ids); err != nil {
			sr.Logger.Warn().Err(err).Msg("Failed to cache advertiser IDs")
		}
	}
	return ids, nil
}

// loaderFor returns the base loader unless the job overrides the warehouse
// destination.
func (sr *SyncRunner) loaderFor(ctx context.Context, job model.SyncJob) (*warehouse.AdsLoader, error) {
	base := sr.Loader
	sameDataset := job.DatasetID == "" || job.DatasetID == base.Client.Dataset
	sameProject := job.ProjectID == "" || job.ProjectID == base.Client.ProjectID
	if sameDataset && sameProject {
		return base, nil
	}

	cfg := sr.Config.BigQuery
	if job.DatasetID != "" {
		cfg.Dataset = job.DatasetID
	}
	if job.ProjectID != "" {
		cfg.ProjectID = job.ProjectID
	}
	client, err := warehouse.NewClient(ctx, &cfg, sr.Logger)
	if err != nil {
		return nil, err
	}
	return warehouse.NewAdsLoader(client, &cfg), nil
}

func failed(step string, err error) model.SyncReport {
	return model.SyncReport{
		Status:  model.StatusFailed,
		Message: step + " failed",
		Error:   err.Error(),
	}
}

func success(message string, records int, merged bool) model.SyncReport {
	return model.SyncReport{
		Status:        model.StatusSuccess,
		Message:       message,
		RecordsSynced: records,
		Merged:        merged,
	}
}

package routing

import (
	"context"
	"time"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	petname "github.com/dustinkirkland/golang-petname"
	ext "github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	"github.com/rs/zerolog"
)

const DefaultMaxPending = 10

// Scheduler enqueues a periodic sync job so the warehouse stays fresh
// without anyone calling the API.
type Scheduler struct {
	Config *model.Config
	Logger *zerolog.Logger
}

func NewSchedulerFlow(ctx context.Context, cfg *model.Config) error {
	sched := &Scheduler{
		Config: cfg,
		Logger: logging.NewLogger(cfg.Server.LogLevel, "component", "Scheduler"),
	}
	rdb, err := integrations.NewRedisClient(cfg.Redis.DSN)
	if err != nil {
		return err
	}

	maxPending := cfg.Publisher.MaxPending
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	dropped := func(job model.SyncJob) {
		sched.Logger.Warn().Str("jobId", job.JobId).Msg("Request queue backlog full, skipping scheduled sync")
	}

	source := ext.NewChanSource(sched.NewTicker())
	// To blocks until the source closes, run the flow in the background
	go source.
		Via(flow.NewMap(sched.NewJob, 1)).
		Via(flow.NewFilter(integrations.NewQueueLimit(ctx, rdb, cfg.Publisher.RequestQueue, maxPending, dropped), 1)).
		To(integrations.NewRedisStreamSink[model.SyncJob](ctx, rdb, cfg.Publisher.RequestQueue))
	return nil
}

// NewTicker fires once at startup and then on every interval.
func (s *Scheduler) NewTicker() chan any {
	outChan := make(chan any)
	period, err := time.ParseDuration(s.Config.Scheduler.Interval)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("Invalid scheduler.interval in config, defaulting to 24h")
		period = 24 * time.Hour
	}
	ticker := time.NewTicker(period)
	go func() {
		for {
			outChan <- ""
			<-ticker.C
		}
	}()
	return outChan
}

// NewJob builds the periodic sync job from the scheduler configuration.
func (s *Scheduler) NewJob(string) model.SyncJob {
	job := model.SyncJob{
		JobId:     petname.Generate(3, "-"),
		Trigger:   model.TriggerScheduler,
		DaysBack:  s.Config.Scheduler.DaysBack,
		UseBulk:   s.Config.Scheduler.UseBulk,
		DatasetID: s.Config.BigQuery.Dataset,
		ProjectID: s.Config.BigQuery.ProjectID,
		Timeout:   PublisherTimeout(s.Config),
		Created:   time.Now().UTC(),
	}
	s.Logger.Info().Str("jobId", job.JobId).Int("daysBack", job.DaysBack).Msg("Enqueueing scheduled sync")
	return job
}

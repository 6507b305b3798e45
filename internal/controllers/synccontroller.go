package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/routing"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

type SyncController struct {
	Path      string
	Api       *huma.API
	Publisher *integrations.RedisGtrsClient[model.SyncJob, model.SyncReport]
	Config    *model.Config
	Logger    *zerolog.Logger
}

// SyncRequestBody triggers an ad insights sync. UseBulk is a pointer so an
// absent field keeps the bulk default instead of collapsing to false.
type SyncRequestBody struct {
	DaysBack    int      `json:"days_back,omitempty" minimum:"1" maximum:"365" doc:"Days back from today to sync, default 30"`
	UseBulk     *bool    `json:"use_bulk,omitempty" doc:"One bulk query for all advertisers, default true"`
	DatasetID   string   `json:"dataset_id,omitempty" doc:"Target dataset, defaults to the configured one"`
	ProjectID   string   `json:"project_id,omitempty" doc:"Target project, defaults to the credentials project"`
	Advertisers []string `json:"advertisers,omitempty" doc:"Restrict the sync to these advertiser IDs"`
}

type SyncRequest struct {
	Body SyncRequestBody
}

type SyncResult struct {
	Body model.SyncReport `json:"body"`
}

type SyncAccepted struct {
	Status int
	Body   struct {
		JobId   string `json:"jobId"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

func NewSyncController(api *huma.API, config *model.Config) *SyncController {
	return &SyncController{
		Path:   "/sync",
		Api:    api,
		Config: config,
		Logger: logging.NewLogger(config.Server.LogLevel, "component", "SyncController"),
	}
}

func (sc *SyncController) WithPublisher(publisher *integrations.RedisGtrsClient[model.SyncJob, model.SyncReport]) *SyncController {
	sc.Publisher = publisher
	return sc
}

func (sc *SyncController) AddRoutes() {
	{
		op, handler := sc.SyncAdsInsights()
		huma.Register(*sc.Api, op, handler)
	}
	{
		op, handler := sc.AsyncSyncAdsInsights()
		huma.Register(*sc.Api, op, handler)
	}
}

// newJob fills a queue job from the request body and the configured defaults.
func (sc *SyncController) newJob(body SyncRequestBody) model.SyncJob {
	daysBack := body.DaysBack
	if daysBack <= 0 {
		daysBack = 30
	}
	useBulk := true
	if body.UseBulk != nil {
		useBulk = *body.UseBulk
	}
	datasetID := body.DatasetID
	if datasetID == "" {
		datasetID = sc.Config.BigQuery.Dataset
	}
	return model.SyncJob{
		JobId:       uuid.New().String(),
		Trigger:     model.TriggerApi,
		DaysBack:    daysBack,
		UseBulk:     useBulk,
		DatasetID:   datasetID,
		ProjectID:   body.ProjectID,
		Advertisers: strings.Join(body.Advertisers, ","),
		Timeout:     routing.PublisherTimeout(sc.Config),
		Created:     time.Now().UTC(),
	}
}

func (sc *SyncController) SyncAdsInsights() (huma.Operation, func(ctx context.Context, input *SyncRequest) (*SyncResult, error)) {
	return huma.Operation{
			OperationID: "SyncAdsInsights",
			Method:      "POST",
			Path:        sc.Path + "/ads-insights",
			Summary:     "Sync ad insights into the warehouse",
			Description: `
				Pulls daily ad performance from StackAdapt for the requested date window,
				stages it in the temp table and merges it into the main table.
				The request blocks until the queued job finishes.`,
			Tags: []string{"sync"},
			Responses: map[string]*huma.Response{
				"200": {
					Description: "The finished sync report",
				},
				"500": {
					Description: "Internal server error",
				},
			},
		}, func(ctx context.Context, input *SyncRequest) (*SyncResult, error) {
			job := sc.newJob(input.Body)
			logger := sc.Logger.With().Str("jobId", job.JobId).Logger()
			logger.Info().Int("daysBack", job.DaysBack).Bool("useBulk", job.UseBulk).Msg("Queueing sync job")

			report, err := sc.Publisher.RequestReply(ctx, job)
			if err != nil {
				logger.Error().Err(err).Msg("Sync job failed")
				return nil, huma.Error500InternalServerError("Failed to get sync result: " + err.Error())
			}
			if report.Status == model.StatusFailed {
				return nil, huma.Error500InternalServerError("Sync failed: " + report.Error)
			}
			return &SyncResult{Body: report}, nil
		}
}

func (sc *SyncController) AsyncSyncAdsInsights() (huma.Operation, func(ctx context.Context, input *SyncRequest) (*SyncAccepted, error)) {
	return huma.Operation{
			OperationID: "AsyncSyncAdsInsights",
			Method:      "POST",
			Path:        sc.Path + "/ads-insights/async",
			Summary:     "Queue an ad insights sync",
			Description: "Queues the sync job and returns immediately. Progress is visible under /runs/{jobId}.",
			Tags:        []string{"sync"},
			Responses: map[string]*huma.Response{
				"202": {
					Description: "Job accepted",
				},
				"500": {
					Description: "Internal server error",
				},
			},
		}, func(ctx context.Context, input *SyncRequest) (*SyncAccepted, error) {
			job := sc.newJob(input.Body)
			corrId, err := sc.Publisher.SendRequest(ctx, job)
			if err != nil {
				sc.Logger.Error().Err(err).Msg("Failed to queue sync job")
				return nil, huma.Error500InternalServerError("Failed to queue sync job: " + err.Error())
			}
			sc.Logger.Info().Str("jobId", job.JobId).Str("corrId", corrId).Msg("Queued sync job")

			resp := &SyncAccepted{Status: 202}
			resp.Body.JobId = job.JobId
			resp.Body.Status = "accepted"
			resp.Body.Message = "Sync job accepted"
			return resp, nil
		}
}

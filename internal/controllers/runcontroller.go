package controllers

import (
	"context"

	"github.com/admetric/stacksync/pkg/model"
	"github.com/danielgtaylor/huma/v2"
)

type RunController struct {
	Path   string
	Api    *huma.API
	Config *model.Config
}

type Runs struct {
	Body []model.SyncRun `json:"body"`
}

type Run struct {
	Body model.SyncRun `json:"body"`
}

type RunListInput struct {
	Pagination
	Status string `query:"status" enum:"success,failed" required:"false" doc:"Filter runs by status"`
}

type RunJobIdInput struct {
	JobId string `path:"jobId" doc:"Job ID of the sync run to retrieve"`
}

func NewRunController(api *huma.API, config *model.Config) *RunController {
	return &RunController{
		Path:   "/runs",
		Api:    api,
		Config: config,
	}
}

func (rc *RunController) AddRoutes() {
	{
		op, handler := rc.GetAll()
		huma.Register(*rc.Api, op, handler)
	}
	{
		op, handler := rc.Get()
		huma.Register(*rc.Api, op, handler)
	}
}

func (rc *RunController) GetAll() (huma.Operation, func(ctx context.Context, input *RunListInput) (*Runs, error)) {
	return huma.Operation{
			OperationID: "GetAllSyncRuns",
			Method:      "GET",
			Path:        rc.Path,
			Summary:     "Get sync run history",
			Description: "Retrieves the persisted sync runs, newest first.",
			Tags:        []string{"runs"},
			Responses: map[string]*huma.Response{
				"200": {
					Description: "A list of sync runs",
				},
				"500": {
					Description: "Internal server error",
				},
			},
		}, func(ctx context.Context, input *RunListInput) (*Runs, error) {
			databaseContext, err := getDatabaseContext(ctx)
			if err != nil {
				return nil, err
			}
			var values []model.SyncRun
			tx := databaseContext.DB.Scopes(Paginate(&input.Pagination)).Order("created_at DESC")
			if input.Status != "" {
				tx = tx.Where("status = ?", input.Status)
			}
			if err := tx.Find(&values).Error; err != nil {
				return nil, huma.Error500InternalServerError("Failed to retrieve sync runs: " + err.Error())
			}
			return &Runs{Body: values}, nil
		}
}

func (rc *RunController) Get() (huma.Operation, func(ctx context.Context, input *RunJobIdInput) (*Run, error)) {
	return huma.Operation{
			OperationID: "GetSyncRun",
			Method:      "GET",
			Path:        rc.Path + "/{jobId}",
			Summary:     "Get one sync run by job ID",
			Description: "Retrieves the sync run of the given job ID.",
			Tags:        []string{"runs"},
			Responses: map[string]*huma.Response{
				"200": {
					Description: "A single sync run",
				},
				"404": {
					Description: "Sync run not found",
				},
				"500": {
					Description: "Internal server error",
				},
			},
		}, func(ctx context.Context, input *RunJobIdInput) (*Run, error) {
			databaseContext, err := getDatabaseContext(ctx)
			if err != nil {
				return nil, err
			}
			var value model.SyncRun
			var query = model.SyncRun{
				JobId: input.JobId,
			}
			if err := databaseContext.DB.Find(&value, &query).Error; err != nil {
				return nil, huma.Error500InternalServerError("Failed to retrieve sync run: " + err.Error())
			}
			if value.JobId == "" {
				return nil, huma.Error404NotFound("Sync run with job ID " + input.JobId + " not found")
			}
			return &Run{Body: value}, nil
		}
}

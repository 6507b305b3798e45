package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type ProbeResult struct {
	Body string `json:"body"`
}

type MetricsController struct {
	Path         string
	Api          *huma.API
	Publisher    *integrations.RedisGtrsClient[model.SyncJob, model.SyncReport]
	Config       *model.Config
	Logger       *zerolog.Logger
	HttpRequests *prometheus.CounterVec
}

func NewMetricsController(api *huma.API, config *model.Config) *MetricsController {
	logger := logging.NewLogger(config.Server.LogLevel, "component", "MetricsController")
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stacksync_http_request_count",
		Help: "Counter for HTTP requests to the StackSync API",
	}, []string{"path", "operation_id", "method", "status_code"})
	if err := prometheus.Register(httpRequests); err != nil {
		logger.Warn().Msg("Failed to register stacksync_http_request_count metric, duplicate registration?")
	}
	return &MetricsController{
		Path:         "/metrics",
		Api:          api,
		Config:       config,
		Logger:       logger,
		HttpRequests: httpRequests,
	}
}

func (mc *MetricsController) WithPublisher(publisher *integrations.RedisGtrsClient[model.SyncJob, model.SyncReport]) *MetricsController {
	mc.Publisher = publisher
	return mc
}

func (mc *MetricsController) AddRoutes() {
	{
		op, handler := mc.GetDefaultMetrics()
		huma.Register(*mc.Api, op, handler)
	}
	{
		op, handler := mc.GetLiveness()
		huma.Register(*mc.Api, op, handler)
	}
	{
		op, handler := mc.GetReadiness()
		huma.Register(*mc.Api, op, handler)
	}
}

func (mc *MetricsController) GetDefaultMetrics() (huma.Operation, func(ctx context.Context, input *struct{}) (*struct{ Body string }, error)) {
	return huma.Operation{
			OperationID: "GetMetrics",
			Method:      "GET",
			Path:        mc.Path,
			Summary:     "Gets default metrics",
			Description: "Serves the process and sync metrics in Prometheus exposition format.",
			Tags:        []string{"metrics"},
			Responses: map[string]*huma.Response{
				"200": {
					Content: map[string]*huma.MediaType{
						"text/plain": {},
					},
					Description: "Metrics",
				},
				"500": {
					Description: "Internal server error",
				},
			},
		}, func(ctx context.Context, input *struct{}) (*struct{ Body string }, error) {
			writer := ctx.Value("writer").(http.ResponseWriter)
			request := ctx.Value("request").(*http.Request)
			promhttp.Handler().ServeHTTP(writer, request)
			return nil, nil
		}
}

func (mc *MetricsController) GetLiveness() (huma.Operation, func(ctx context.Context, input *struct{}) (*ProbeResult, error)) {
	return huma.Operation{
			OperationID: "LivenessProbe",
			Method:      "GET",
			Path:        "/health",
			Summary:     "Liveness probe",
			Description: "Used for liveness probe",
			Tags:        []string{"probes"},
			Responses: map[string]*huma.Response{
				"200": {
					Description: "Check if the service is alive",
				},
			},
		}, func(ctx context.Context, input *struct{}) (*ProbeResult, error) {
			return &ProbeResult{Body: "OK"}, nil
		}
}

func (mc *MetricsController) GetReadiness() (huma.Operation, func(ctx context.Context, input *struct{}) (*ProbeResult, error)) {
	return huma.Operation{
			OperationID: "ReadinessProbe",
			Method:      "GET",
			Path:        "/ready",
			Summary:     "Readiness probe",
			Description: "Returns error when the job queue or the run database is unreachable.",
			Tags:        []string{"probes"},
			Responses: map[string]*huma.Response{
				"200": {
					Description: "Ready to serve requests",
				},
				"500": {
					Description: "Internal server error",
				},
			},
		}, func(ctx context.Context, input *struct{}) (*ProbeResult, error) {
			if mc.Publisher != nil {
				if err := mc.Publisher.Connect(ctx); err != nil {
					return nil, huma.Error500InternalServerError("Job queue unreachable: " + err.Error())
				}
			}
			databaseContext, err := getDatabaseContext(ctx)
			if err != nil {
				return nil, err
			}
			sqlDB, err := databaseContext.DB.DB()
			if err != nil {
				return nil, huma.Error500InternalServerError("Database unreachable: " + err.Error())
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return nil, huma.Error500InternalServerError("Database unreachable: " + err.Error())
			}
			return &ProbeResult{Body: "Ready to serve requests"}, nil
		}
}

// The request and writer are injected into the context so the metrics
// handler can serve the Prometheus exposition directly.

func (mc *MetricsController) MetricsMiddleware() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		ctx = huma.WithValue(ctx, "request", r)
		ctx = huma.WithValue(ctx, "writer", w)
		next(ctx)
		mc.HttpRequests.WithLabelValues(
			ctx.Operation().Path,
			ctx.Operation().OperationID,
			ctx.Method(),
			fmt.Sprintf("%d", ctx.Status()),
		).Inc()
	}
}

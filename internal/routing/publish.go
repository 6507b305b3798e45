package routing

import (
	"context"
	"time"

	"github.com/admetric/stacksync/internal/integrations"
	"github.com/admetric/stacksync/pkg/model"
)

const DefaultPublisherTimeout = 10 * time.Minute

// PublisherTimeout returns how long the API waits for a queued job's reply.
func PublisherTimeout(cfg *model.Config) time.Duration {
	timeout, err := time.ParseDuration(cfg.Publisher.Timeout)
	if err != nil {
		return DefaultPublisherTimeout
	}
	return timeout
}

// NewPublisher connects the sync job request/reply client used by the API.
func NewPublisher(ctx context.Context, cfg *model.Config) (*integrations.RedisGtrsClient[model.SyncJob, model.SyncReport], error) {
	rdb, err := integrations.NewRedisClient(cfg.Redis.DSN)
	if err != nil {
		return nil, err
	}
	return integrations.NewRedisGtrsClient[model.SyncJob, model.SyncReport](
		ctx, rdb, cfg.Publisher.RequestQueue, cfg.Publisher.ResponseQueue, PublisherTimeout(cfg))
}

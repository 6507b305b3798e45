package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrKeyNotFound = errors.New("key not found")

const advertiserKey = "stacksync:advertisers"

// AdvertiserCache keeps the advertiser ID list in redis so per-run syncs do
// not hit the advertisers query every time.
type AdvertiserCache struct {
	Endpoint string
	Expiry   time.Duration

	rdb    *redis.Client
	logger *zerolog.Logger
}

func NewAdvertiserCache(endpoint string, expiry time.Duration, logger *zerolog.Logger) (*AdvertiserCache, error) {

	logger.Debug().Msg("NewAdvertiserCache() ..")

	// prepare client, does not connect
	options, err := redis.ParseURL(endpoint)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(options)
	return &AdvertiserCache{
		Endpoint: endpoint,
		Expiry:   expiry,
		rdb:      client,
		logger:   logger,
	}, nil
}

func (rx AdvertiserCache) ServiceName() string {
	return "cache"
}

func (rx *AdvertiserCache) Connect(ctx context.Context) error {
	if err := rx.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connect (ping): %v", err)
	}
	return nil
}

func (rx *AdvertiserCache) Close() {
	if rx.rdb != nil {
		rx.rdb.Close()
	}
}

// Put stores the advertiser ID list with the configured expiry.
func (rx *AdvertiserCache) Put(ctx context.Context, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := rx.rdb.Set(ctx, advertiserKey, data, rx.Expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %v", err)
	}
	rx.logger.Debug().Any("count", len(ids)).Msg("Cached advertiser IDs")
	return nil
}

// Get returns the cached advertiser ID list, ErrKeyNotFound when missing
// or expired.
func (rx *AdvertiserCache) Get(ctx context.Context) ([]string, error) {
	data, err := rx.rdb.Get(ctx, advertiserKey).Bytes()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get: %v", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Invalidate drops the cached list.
func (rx *AdvertiserCache) Invalidate(ctx context.Context) error {
	return rx.rdb.Del(ctx, advertiserKey).Err()
}

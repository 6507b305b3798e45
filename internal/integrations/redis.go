package integrations

import (
	"context"
	"fmt"
	"time"

	"github.com/dranikpg/gtrs"
	"github.com/redis/go-redis/v9"
	"github.com/reugn/go-streams"
	"github.com/reugn/go-streams/extension"
	"github.com/rs/zerolog/log"
)

// NewRedisClient prepares a client from a DSN like redis://localhost:6379/0.
func NewRedisClient(dsn string) (*redis.Client, error) {
	options, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid redis DSN: %w", err)
	}
	return redis.NewClient(options), nil
}

// NewRedisConsumerGroupSource adapts a gtrs consumer group on a redis stream
// into a go-streams source of T.
func NewRedisConsumerGroupSource[T any](ctx context.Context, rdb *redis.Client, streamName string, groupName string, consumerName string) streams.Source {
	consumer := gtrs.NewGroupConsumer[T](ctx, rdb, groupName, consumerName, streamName, "0-0", gtrs.GroupConsumerConfig{
		StreamConsumerConfig: gtrs.StreamConsumerConfig{
			Block:      0,   // 0 means infinite
			Count:      100, // maximum number of entries per request
			BufferSize: 20,  // how many entries to prefetch at most
		},
		AckBufferSize: 10, // size of the acknowledgement buffer
	})

	// Adapt <-chan gtrs.Message[T] to chan any
	adapterChan := make(chan interface{})
	go func() {
		defer close(adapterChan)
		for msg := range consumer.Chan() {
			adapterChan <- msg.Data
			consumer.Ack(msg)
		}
	}()

	return extension.NewChanSource(adapterChan)
}

// NewRedisStreamSink adapts a gtrs stream into a go-streams sink for T.
func NewRedisStreamSink[T any](ctx context.Context, rdb *redis.Client, streamName string) streams.Sink {
	stream := gtrs.NewStream[T](rdb, streamName, nil)

	adapterChan := make(chan any, 100)
	go func() {
		for msg := range adapterChan {
			if _, err := stream.Add(ctx, msg.(T)); err != nil {
				log.Error().Err(err).Str("stream", streamName).Msg("Failed to add entry to stream")
			}
		}
	}()

	return extension.NewChanSink(adapterChan)
}

// NewQueueLimit returns a stream filter predicate that drops elements while
// the queue backlog is at or above limit. The optional callback fires for
// each dropped element.
func NewQueueLimit[T any](ctx context.Context, rdb *redis.Client, queueName string, limit int64, cb ...func(in T)) func(in T) bool {
	return func(in T) bool {
		queueSize, err := rdb.XLen(ctx, queueName).Result()
		if err != nil {
			log.Error().Err(err).Msg("Failed to get queue length")
			return false
		}
		if queueSize >= limit {
			if len(cb) > 0 {
				cb[0](in)
			}
			return false
		}
		return true
	}
}

// RedisGtrsClient publishes requests of type T on a redis stream and awaits
// replies of type R correlated by the request entry ID.
type RedisGtrsClient[T any, R any] struct {
	rdb           *redis.Client
	requestStream *gtrs.Stream[T]
	requestQueue  string
	replyQueue    string
	zeroValue     R
	timeout       time.Duration
}

func NewRedisGtrsClient[T any, R any](ctx context.Context, rdb *redis.Client, requestQueue string, replyQueue string, timeout time.Duration) (*RedisGtrsClient[T, R], error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis for publisher: %w", err)
	}
	stream := gtrs.NewStream[T](rdb, requestQueue, nil)
	return &RedisGtrsClient[T, R]{
		rdb:           rdb,
		requestStream: &stream,
		requestQueue:  requestQueue,
		replyQueue:    replyQueue,
		timeout:       timeout}, nil
}

func (c *RedisGtrsClient[T, R]) ServiceName() string {
	return "publisher"
}

func (c *RedisGtrsClient[T, R]) Connect(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RequestReply publishes the payload and blocks until the matching reply
// arrives or the configured timeout passes.
func (c *RedisGtrsClient[T, R]) RequestReply(ctx context.Context, payload T) (R, error) {
	corrID, err := c.SendRequest(ctx, payload)
	if err != nil {
		return c.zeroValue, err
	}
	return c.ReceiveResponse(ctx, corrID, c.timeout)
}

func (c *RedisGtrsClient[T, R]) SendRequest(ctx context.Context, payload T) (string, error) {
	return c.requestStream.Add(ctx, payload)
}

func (c *RedisGtrsClient[T, R]) ReceiveResponse(ctx context.Context, corrID string, timeout time.Duration) (R, error) {
	// Read reply queue from the beginning; replies carry the ID of the
	// request entry they answer.
	replyConsumer := gtrs.NewConsumer[R](ctx, c.rdb, gtrs.StreamIDs{c.replyQueue: "0"}, gtrs.StreamConsumerConfig{
		Block:      timeout,
		Count:      0,
		BufferSize: 50,
	})
	defer replyConsumer.Close()

	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-replyConsumer.Chan():
			if !ok {
				return c.zeroValue, fmt.Errorf("reply consumer closed")
			}
			if msg.Err != nil {
				continue
			}
			if msg.ID == corrID {
				return msg.Data, nil
			}
		case <-deadline:
			return c.zeroValue, fmt.Errorf("timeout waiting for reply")
		case <-ctx.Done():
			return c.zeroValue, ctx.Err()
		}
	}
}

// RedisGtrsServer consumes requests of type T from a redis stream and
// publishes replies of type R, correlated by the request entry ID.
type RedisGtrsServer[T any, R any] struct {
	rdb          *redis.Client
	requestQueue string
	replyQueue   string
	groupName    string
	consumerName string
	replyStream  *gtrs.Stream[R]
}

func NewRedisGtrsServer[T any, R any](ctx context.Context, rdb *redis.Client, requestQueue string, replyQueue string, groupName string, consumerName string) (*RedisGtrsServer[T, R], error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis for worker: %w", err)
	}
	replyStream := gtrs.NewStream[R](rdb, replyQueue, nil)

	return &RedisGtrsServer[T, R]{
		rdb:          rdb,
		requestQueue: requestQueue,
		replyQueue:   replyQueue,
		groupName:    groupName,
		consumerName: consumerName,
		replyStream:  &replyStream}, nil
}

// ProcessRequest consumes requests one at a time and replies with the
// handler result. One consumer loop per worker keeps runs serialized.
func (c *RedisGtrsServer[T, R]) ProcessRequest(ctx context.Context, handler func(T) R) {
	consumer := gtrs.NewGroupConsumer[T](ctx, c.rdb, c.groupName, c.consumerName, c.requestQueue, "0-0", gtrs.GroupConsumerConfig{
		StreamConsumerConfig: gtrs.StreamConsumerConfig{
			Block:      0,   // 0 means infinite
			Count:      100, // maximum number of entries per request
			BufferSize: 20,  // how many entries to prefetch at most
		},
		AckBufferSize: 10, // size of the acknowledgement buffer
	})

	for msg := range consumer.Chan() {
		if msg.Err != nil {
			continue
		}
		result := handler(msg.Data)

		// Reply with the request entry ID so clients can correlate
		replyID, err := c.replyStream.Add(ctx, result, msg.ID)
		if err != nil {
			log.Error().Err(err).Str("replyId", replyID).Msg("Failed to send reply")
		}

		// Once the reply is out, take the request out of the queue
		consumer.Ack(msg)
	}
}

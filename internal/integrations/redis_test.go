package integrations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/admetric/stacksync/pkg/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRequestQueue  = "stacksync:requests"
	testResponseQueue = "stacksync:responses"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb, err := NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	return rdb
}

func TestNewRedisClientInvalidDSN(t *testing.T) {
	_, err := NewRedisClient("not-a-dsn")
	assert.ErrorContains(t, err, "invalid redis DSN")
}

func TestRequestReply(t *testing.T) {
	rdb := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := NewRedisGtrsServer[model.SyncJob, model.SyncReport](
		ctx, rdb, testRequestQueue, testResponseQueue, "stacksync", "worker-test")
	require.NoError(t, err)

	go server.ProcessRequest(ctx, func(job model.SyncJob) model.SyncReport {
		return model.SyncReport{
			JobId:         job.JobId,
			Status:        model.StatusSuccess,
			Message:       "sync complete",
			RecordsSynced: job.DaysBack, // marker so the reply is provably derived from the request
		}
	})

	client, err := NewRedisGtrsClient[model.SyncJob, model.SyncReport](
		ctx, rdb, testRequestQueue, testResponseQueue, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "publisher", client.ServiceName())
	require.NoError(t, client.Connect(ctx))

	job := model.SyncJob{JobId: "job-rr", Trigger: model.TriggerApi, DaysBack: 7, UseBulk: true}
	report, err := client.RequestReply(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "job-rr", report.JobId)
	assert.Equal(t, model.StatusSuccess, report.Status)
	assert.Equal(t, 7, report.RecordsSynced)
}

func TestRequestReplyCorrelation(t *testing.T) {
	rdb := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := NewRedisGtrsServer[model.SyncJob, model.SyncReport](
		ctx, rdb, testRequestQueue, testResponseQueue, "stacksync", "worker-test")
	require.NoError(t, err)
	go server.ProcessRequest(ctx, func(job model.SyncJob) model.SyncReport {
		return model.SyncReport{JobId: job.JobId, Status: model.StatusSuccess}
	})

	client, err := NewRedisGtrsClient[model.SyncJob, model.SyncReport](
		ctx, rdb, testRequestQueue, testResponseQueue, 5*time.Second)
	require.NoError(t, err)

	// queue two jobs, then collect the reply of the second one first
	corrA, err := client.SendRequest(ctx, model.SyncJob{JobId: "job-a"})
	require.NoError(t, err)
	corrB, err := client.SendRequest(ctx, model.SyncJob{JobId: "job-b"})
	require.NoError(t, err)

	reportB, err := client.ReceiveResponse(ctx, corrB, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-b", reportB.JobId)

	reportA, err := client.ReceiveResponse(ctx, corrA, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-a", reportA.JobId)
}

func TestReceiveResponseTimeout(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	client, err := NewRedisGtrsClient[model.SyncJob, model.SyncReport](
		ctx, rdb, testRequestQueue, testResponseQueue, 100*time.Millisecond)
	require.NoError(t, err)

	// no worker is running, the reply never arrives
	_, err = client.RequestReply(ctx, model.SyncJob{JobId: "job-timeout"})
	assert.ErrorContains(t, err, "timeout")
}

func TestQueueLimit(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	dropped := 0
	limit := NewQueueLimit(ctx, rdb, testRequestQueue, 3, func(in model.SyncJob) {
		dropped++
	})

	// fill the backlog
	for i := 0; i < 3; i++ {
		err := rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: testRequestQueue,
			Values: map[string]any{"payload": fmt.Sprintf("{\"jobId\":\"job-%d\"}", i)},
		}).Err()
		require.NoError(t, err)
	}

	assert.False(t, limit(model.SyncJob{JobId: "overflow"}))
	assert.Equal(t, 1, dropped)

	// below the limit elements pass
	require.NoError(t, rdb.XTrimMaxLen(ctx, testRequestQueue, 1).Err())
	assert.True(t, limit(model.SyncJob{JobId: "ok"}))
	assert.Equal(t, 1, dropped)
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJobDateRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	job := SyncJob{DaysBack: 7}
	from, to := job.DateRange(now)
	assert.Equal(t, "2025-06-08", from)
	assert.Equal(t, "2025-06-15", to)

	// zero and negative fall back to 30 days
	job = SyncJob{}
	from, to = job.DateRange(now)
	assert.Equal(t, "2025-05-16", from)
	assert.Equal(t, "2025-06-15", to)

	job = SyncJob{DaysBack: -5}
	from, _ = job.DateRange(now)
	assert.Equal(t, "2025-05-16", from)
}

func TestSyncJobAdvertiserIDs(t *testing.T) {
	assert.Nil(t, SyncJob{}.AdvertiserIDs())
	assert.Nil(t, SyncJob{Advertisers: "  "}.AdvertiserIDs())
	assert.Equal(t, []string{"1", "2", "3"}, SyncJob{Advertisers: "1,2,3"}.AdvertiserIDs())
	assert.Equal(t, []string{"42", "77"}, SyncJob{Advertisers: " 42, 77 ,"}.AdvertiserIDs())
}

func TestSyncJobRoundTrip(t *testing.T) {
	job := SyncJob{
		JobId:       "job-1",
		Trigger:     TriggerApi,
		DaysBack:    14,
		UseBulk:     true,
		DatasetID:   "raw_ads",
		Advertisers: "1,2",
		Timeout:     5 * time.Minute,
		Created:     time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	m, err := job.ToMap()
	require.NoError(t, err)
	require.Contains(t, m, "payload")

	var decoded SyncJob
	require.NoError(t, decoded.FromMap(m))
	assert.Equal(t, job, decoded)
}

func TestSyncReportRoundTrip(t *testing.T) {
	report := SyncReport{
		JobId:         "job-1",
		Status:        StatusSuccess,
		Message:       "sync complete",
		RecordsSynced: 123,
		Merged:        true,
		DateFrom:      "2025-05-16",
		DateTo:        "2025-06-15",
		Duration:      90 * time.Second,
		Finished:      time.Date(2025, 6, 15, 12, 1, 30, 0, time.UTC),
	}

	m, err := report.ToMap()
	require.NoError(t, err)

	var decoded SyncReport
	require.NoError(t, decoded.FromMap(m))
	assert.Equal(t, report, decoded)
}

func TestNewSyncRun(t *testing.T) {
	job := SyncJob{JobId: "job-1", Trigger: TriggerScheduler}
	report := SyncReport{
		JobId:         "job-1",
		Status:        StatusFailed,
		Message:       "fetch ad insights failed",
		Error:         "boom",
		DateFrom:      "2025-05-16",
		DateTo:        "2025-06-15",
		Duration:      1500 * time.Millisecond,
		RecordsSynced: 0,
	}

	run := NewSyncRun(job, report)
	assert.Equal(t, "job-1", run.JobId)
	assert.Equal(t, TriggerScheduler, run.Trigger)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
	assert.Equal(t, int64(1500), run.DurationMS)
}

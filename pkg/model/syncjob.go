package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Job trigger origins.
const (
	TriggerApi       = "api"
	TriggerScheduler = "scheduler"
	TriggerCli       = "cli"
)

// SyncJob is the unit of work on the sync request queue: one pull of ad
// insights from StackAdapt into the warehouse for a date window.
type SyncJob struct {
	JobId       string        `json:"jobId"`
	Trigger     string        `json:"trigger"`               // api, scheduler or cli
	DaysBack    int           `json:"daysBack"`              // window size ending today
	UseBulk     bool          `json:"useBulk"`               // one bulk query vs. one query per advertiser
	DatasetID   string        `json:"datasetId"`             // target BigQuery dataset
	ProjectID   string        `json:"projectId"`             // empty means credentials project
	Advertisers string        `json:"advertisers,omitempty"` // comma separated advertiser IDs, empty means all
	Timeout     time.Duration `json:"timeout"`
	Created     time.Time     `json:"created"`
}

// AdvertiserIDs returns the explicit advertiser subset, nil when the job
// covers all advertisers.
func (j SyncJob) AdvertiserIDs() []string {
	if strings.TrimSpace(j.Advertisers) == "" {
		return nil
	}
	parts := strings.Split(j.Advertisers, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// DateRange returns the inclusive from/to dates (YYYY-MM-DD) covered by the job.
func (j SyncJob) DateRange(now time.Time) (string, string) {
	daysBack := j.DaysBack
	if daysBack <= 0 {
		daysBack = 30
	}
	dateTo := now.Format("2006-01-02")
	dateFrom := now.AddDate(0, 0, -daysBack).Format("2006-01-02")
	return dateFrom, dateTo
}

// ToMap implements gtrs.ConvertibleTo so the job travels as one JSON field
// on the redis stream.
func (j SyncJob) ToMap() (map[string]any, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return map[string]any{"payload": string(data)}, nil
}

// FromMap implements gtrs.ConvertibleFrom.
func (j *SyncJob) FromMap(m map[string]any) error {
	payload, _ := m["payload"].(string)
	return json.Unmarshal([]byte(payload), j)
}

// Report statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SyncReport is the reply produced by the worker for a SyncJob.
type SyncReport struct {
	JobId         string        `json:"jobId"`
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	RecordsSynced int           `json:"recordsSynced"`
	Merged        bool          `json:"merged"` // temp table merged into the main table
	DateFrom      string        `json:"dateFrom"`
	DateTo        string        `json:"dateTo"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	Finished      time.Time     `json:"finished"`
}

func (r SyncReport) ToMap() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return map[string]any{"payload": string(data)}, nil
}

func (r *SyncReport) FromMap(m map[string]any) error {
	payload, _ := m["payload"].(string)
	return json.Unmarshal([]byte(payload), r)
}

package model

// SyncRun is the persisted history of one pipeline run.
type SyncRun struct {
	DefaultGormModel
	JobId         string `gorm:"uniqueIndex" json:"jobId"`
	Trigger       string `json:"trigger"`
	Status        string `gorm:"index" json:"status"`
	Message       string `json:"message"`
	RecordsSynced int    `json:"recordsSynced"`
	Merged        bool   `json:"merged"`
	DateFrom      string `json:"dateFrom"`
	DateTo        string `json:"dateTo"`
	DurationMS    int64  `json:"durationMs"`
	Error         string `json:"error,omitempty"`
}

// NewSyncRun builds the history row for a finished job.
func NewSyncRun(job SyncJob, report SyncReport) SyncRun {
	return SyncRun{
		JobId:         job.JobId,
		Trigger:       job.Trigger,
		Status:        report.Status,
		Message:       report.Message,
		RecordsSynced: report.RecordsSynced,
		Merged:        report.Merged,
		DateFrom:      report.DateFrom,
		DateTo:        report.DateTo,
		DurationMS:    report.Duration.Milliseconds(),
		Error:         report.Error,
	}
}

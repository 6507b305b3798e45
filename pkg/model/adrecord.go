package model

import "time"

// AdPerformanceRecord is one flattened row of daily ad performance, in the
// shape loaded into the warehouse. Column names follow the StackAdapt API
// metric names, so the merge statement and downstream queries stay stable.
// Nil metrics are loaded as NULL.
type AdPerformanceRecord struct {
	AdID              string `json:"ad_id"`
	AdName            string `json:"ad_name"`
	Date              string `json:"date"` // ISO8601 date
	CampaignID        string `json:"campaign_id"`
	CampaignName      string `json:"campaign_name"`
	CampaignGroupID   string `json:"campaign_group_id"`
	CampaignGroupName string `json:"campaign_group_name"`
	GoalType          string `json:"goalType"`

	Clicks           *int64   `json:"clicks"`
	ClickConversions *int64   `json:"clickConversions"`
	Engagements      *int64   `json:"engagements"`
	VideoStarts      *int64   `json:"videoStarts"`
	VideoQ1Playbacks *int64   `json:"videoQ1Playbacks"`
	VideoQ2Playbacks *int64   `json:"videoQ2Playbacks"`
	VideoQ3Playbacks *int64   `json:"videoQ3Playbacks"`
	VideoCompletions *int64   `json:"videoCompletions"`
	Impressions      *int64   `json:"impressions"`
	Frequency        *float64 `json:"frequency"`
	Cost             *float64 `json:"cost"` // cents, as delivered by the API

	LoadedAt time.Time `json:"_loaded_at"`
	Source   string    `json:"_source"`
}

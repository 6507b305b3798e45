package warehouse

import (
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/admetric/stacksync/pkg/model"
)

// adsSchema is the warehouse schema of one daily ad performance row.
// Column names stay aligned with the StackAdapt metric names.
var adsSchema = bigquery.Schema{
	{Name: "ad_id", Type: bigquery.StringFieldType},
	{Name: "ad_name", Type: bigquery.StringFieldType},
	{Name: "date", Type: bigquery.DateFieldType},
	{Name: "campaign_id", Type: bigquery.StringFieldType},
	{Name: "campaign_name", Type: bigquery.StringFieldType},
	{Name: "campaign_group_id", Type: bigquery.StringFieldType},
	{Name: "campaign_group_name", Type: bigquery.StringFieldType},
	{Name: "goalType", Type: bigquery.StringFieldType},
	{Name: "clicks", Type: bigquery.IntegerFieldType},
	{Name: "clickConversions", Type: bigquery.IntegerFieldType},
	{Name: "engagements", Type: bigquery.IntegerFieldType},
	{Name: "videoStarts", Type: bigquery.IntegerFieldType},
	{Name: "videoQ1Playbacks", Type: bigquery.IntegerFieldType},
	{Name: "videoQ2Playbacks", Type: bigquery.IntegerFieldType},
	{Name: "videoQ3Playbacks", Type: bigquery.IntegerFieldType},
	{Name: "videoCompletions", Type: bigquery.IntegerFieldType},
	{Name: "impressions", Type: bigquery.IntegerFieldType},
	{Name: "frequency", Type: bigquery.FloatFieldType},
	{Name: "cost", Type: bigquery.FloatFieldType},
	{Name: "_loaded_at", Type: bigquery.TimestampFieldType},
	{Name: "_source", Type: bigquery.StringFieldType},
}

// mergeColumns are the non-key columns updated by the merge statement; the
// upsert key is (ad_id, date).
var mergeColumns = []string{
	"ad_name", "campaign_id", "campaign_name",
	"campaign_group_id", "campaign_group_name", "goalType",
	"clicks", "clickConversions", "engagements", "videoStarts",
	"videoQ1Playbacks", "videoQ2Playbacks", "videoQ3Playbacks",
	"videoCompletions", "impressions", "frequency", "cost",
	"_loaded_at", "_source",
}

// adsRow adapts an AdPerformanceRecord to the BigQuery streaming insert API.
type adsRow struct {
	Record model.AdPerformanceRecord
}

var _ bigquery.ValueSaver = (*adsRow)(nil)

// Save implements bigquery.ValueSaver. The dedupe ID covers the upsert key
// so retried inserts of the same day's row collapse.
func (r *adsRow) Save() (map[string]bigquery.Value, string, error) {
	rec := r.Record
	values := map[string]bigquery.Value{
		"ad_id":               rec.AdID,
		"ad_name":             rec.AdName,
		"date":                rec.Date,
		"campaign_id":         rec.CampaignID,
		"campaign_name":       rec.CampaignName,
		"campaign_group_id":   rec.CampaignGroupID,
		"campaign_group_name": rec.CampaignGroupName,
		"goalType":            rec.GoalType,
		"clicks":              optInt(rec.Clicks),
		"clickConversions":    optInt(rec.ClickConversions),
		"engagements":         optInt(rec.Engagements),
		"videoStarts":         optInt(rec.VideoStarts),
		"videoQ1Playbacks":    optInt(rec.VideoQ1Playbacks),
		"videoQ2Playbacks":    optInt(rec.VideoQ2Playbacks),
		"videoQ3Playbacks":    optInt(rec.VideoQ3Playbacks),
		"videoCompletions":    optInt(rec.VideoCompletions),
		"impressions":         optInt(rec.Impressions),
		"frequency":           optFloat(rec.Frequency),
		"cost":                optFloat(rec.Cost),
		"_loaded_at":          rec.LoadedAt,
		"_source":             rec.Source,
	}
	dedupeID := fmt.Sprintf("%s.%s", rec.AdID, rec.Date)
	return values, dedupeID, nil
}

func optInt(v *int64) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

func optFloat(v *float64) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

package streams

import (
	"time"

	"github.com/admetric/stacksync/internal/integrations/stackadapt"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/utils"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// SourceName tags every loaded row with its origin system.
const SourceName = "stackadapt_graphql_api"

// AdRecordHandler flattens GraphQL insight envelopes into warehouse rows and
// tallies the metrics seen while the flow runs.
type AdRecordHandler struct {
	Logger *zerolog.Logger

	counts *utils.SafeIntMap
	floats *utils.SafeFloatMap
}

func NewAdRecordHandler() *AdRecordHandler {
	return &AdRecordHandler{
		Logger: logging.NewLogger("info", "component", "AdRecordHandler"),
		counts: utils.NewSafeIntMap(),
		floats: utils.NewSafeFloatMap(),
	}
}

// Flatten turns one insight envelope into flat daily ad rows, collapsing the
// nested ad/campaign/campaignGroup hierarchy into columns.
func (rx *AdRecordHandler) Flatten(envelope *stackadapt.InsightsEnvelope) []model.AdPerformanceRecord {
	nodes := envelope.Records()
	records := make([]model.AdPerformanceRecord, 0, len(nodes))
	for _, node := range nodes {
		ad := node.Attributes.Ad
		metrics := node.Metrics
		records = append(records, model.AdPerformanceRecord{
			AdID:              ad.ID,
			AdName:            ad.Name,
			Date:              node.Attributes.Date,
			CampaignID:        ad.Campaign.ID,
			CampaignName:      ad.Campaign.Name,
			CampaignGroupID:   ad.Campaign.CampaignGroup.ID,
			CampaignGroupName: ad.Campaign.CampaignGroup.Name,
			GoalType:          ad.Campaign.GoalType,
			Clicks:            metrics.Clicks,
			ClickConversions:  metrics.ClickConversions,
			Engagements:       metrics.Engagements,
			VideoStarts:       metrics.VideoStarts,
			VideoQ1Playbacks:  metrics.VideoQ1Playbacks,
			VideoQ2Playbacks:  metrics.VideoQ2Playbacks,
			VideoQ3Playbacks:  metrics.VideoQ3Playbacks,
			VideoCompletions:  metrics.VideoCompletions,
			Impressions:       metrics.Impressions,
			Frequency:         metrics.Frequency,
			Cost:              metrics.Cost,
		})
	}
	return records
}

// Annotate stamps a row with load time and source before it reaches the sink.
func (rx *AdRecordHandler) Annotate(record model.AdPerformanceRecord) model.AdPerformanceRecord {
	record.LoadedAt = time.Now().UTC()
	record.Source = SourceName
	return record
}

// Tally accumulates row and metric totals as rows pass through.
func (rx *AdRecordHandler) Tally(record model.AdPerformanceRecord) model.AdPerformanceRecord {
	rx.counts.Add("rows", 1)
	if record.Clicks != nil {
		rx.counts.Add("clicks", *record.Clicks)
	}
	if record.ClickConversions != nil {
		rx.counts.Add("conversions", *record.ClickConversions)
	}
	if record.Impressions != nil {
		rx.counts.Add("impressions", *record.Impressions)
	}
	if record.Cost != nil {
		rx.floats.Add("cost_cents", *record.Cost)
	}
	return record
}

// Rows returns the number of rows tallied so far.
func (rx *AdRecordHandler) Rows() int64 {
	return rx.counts.Val("rows")
}

// LogSummary reports the totals collected while the flow ran.
func (rx *AdRecordHandler) LogSummary() {
	rx.Logger.Info().
		Str("rows", humanize.Comma(rx.counts.Val("rows"))).
		Str("clicks", humanize.Comma(rx.counts.Val("clicks"))).
		Str("conversions", humanize.Comma(rx.counts.Val("conversions"))).
		Str("impressions", humanize.Comma(rx.counts.Val("impressions"))).
		Str("cost_usd", humanize.CommafWithDigits(rx.floats.Val("cost_cents")/100, 2)).
		Msg("flattened ad insights")
}

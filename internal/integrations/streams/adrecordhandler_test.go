package streams

import (
	"testing"
	"time"

	"github.com/admetric/stacksync/internal/integrations/stackadapt"
	"github.com/admetric/stacksync/pkg/model"
	ext "github.com/reugn/go-streams/extension"
	"github.com/reugn/go-streams/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int64) *int64       { return &n }
func floatPtr(f float64) *float64 { return &f }

func testEnvelope(adIDs ...string) *stackadapt.InsightsEnvelope {
	var env stackadapt.InsightsEnvelope
	for _, id := range adIDs {
		env.Data.CampaignGroupInsight.Records.Edges = append(env.Data.CampaignGroupInsight.Records.Edges,
			stackadapt.InsightEdge{
				Node: stackadapt.InsightNode{
					Attributes: stackadapt.InsightAttributes{
						Ad: stackadapt.InsightAd{
							ID:   id,
							Name: "Ad " + id,
							Campaign: stackadapt.InsightCampaign{
								ID:       "c1",
								Name:     "Campaign",
								GoalType: "CPC",
								CampaignGroup: stackadapt.InsightCampaignGroup{
									ID:   "g1",
									Name: "Group",
								},
							},
						},
						Date: "2025-06-01",
					},
					Metrics: stackadapt.InsightMetrics{
						Clicks:      intPtr(10),
						Impressions: intPtr(200),
						Cost:        floatPtr(150.0),
					},
				},
			})
	}
	return &env
}

func TestFlatten(t *testing.T) {
	handler := NewAdRecordHandler()
	records := handler.Flatten(testEnvelope("ad-1", "ad-2"))
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, "ad-1", rec.AdID)
	assert.Equal(t, "Ad ad-1", rec.AdName)
	assert.Equal(t, "2025-06-01", rec.Date)
	assert.Equal(t, "c1", rec.CampaignID)
	assert.Equal(t, "g1", rec.CampaignGroupID)
	assert.Equal(t, "CPC", rec.GoalType)
	require.NotNil(t, rec.Clicks)
	assert.Equal(t, int64(10), *rec.Clicks)
	assert.Nil(t, rec.Engagements)

	// not yet annotated
	assert.True(t, rec.LoadedAt.IsZero())
	assert.Empty(t, rec.Source)
}

func TestAnnotate(t *testing.T) {
	handler := NewAdRecordHandler()
	rec := handler.Annotate(model.AdPerformanceRecord{AdID: "ad-1"})
	assert.Equal(t, SourceName, rec.Source)
	assert.WithinDuration(t, time.Now().UTC(), rec.LoadedAt, time.Minute)
}

func TestTally(t *testing.T) {
	handler := NewAdRecordHandler()
	for _, rec := range handler.Flatten(testEnvelope("ad-1", "ad-2", "ad-3")) {
		handler.Tally(rec)
	}
	assert.Equal(t, int64(3), handler.Rows())
	handler.LogSummary()
}

func TestInsightFlow(t *testing.T) {
	handler := NewAdRecordHandler()
	envelopes := []*stackadapt.InsightsEnvelope{
		testEnvelope("ad-1", "ad-2"),
		testEnvelope("ad-3"),
	}

	out := make(chan any, 10)
	NewInsightSource(envelopes).
		Via(flow.NewFlatMap(handler.Flatten, 1)).
		Via(flow.NewMap(handler.Annotate, 1)).
		Via(flow.NewMap(handler.Tally, 1)).
		Via(flow.NewBatch[model.AdPerformanceRecord](2, 100*time.Millisecond)).
		To(ext.NewChanSink(out))

	var records []model.AdPerformanceRecord
	for elem := range out {
		batch, ok := elem.([]model.AdPerformanceRecord)
		require.True(t, ok)
		assert.LessOrEqual(t, len(batch), 2)
		records = append(records, batch...)
	}

	require.Len(t, records, 3)
	assert.Equal(t, int64(3), handler.Rows())
	for _, rec := range records {
		assert.Equal(t, SourceName, rec.Source)
		assert.False(t, rec.LoadedAt.IsZero())
	}
}

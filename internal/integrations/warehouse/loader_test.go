package warehouse

import (
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader() *AdsLoader {
	client := &Client{ProjectID: "test-project", Dataset: "raw_ads"}
	return NewAdsLoader(client, &model.BigQueryConfig{})
}

func testRecord() model.AdPerformanceRecord {
	clicks := int64(42)
	cost := 1234.5
	return model.AdPerformanceRecord{
		AdID:              "ad-1",
		AdName:            "Ad One",
		Date:              "2025-06-01",
		CampaignID:        "c1",
		CampaignName:      "Campaign",
		CampaignGroupID:   "g1",
		CampaignGroupName: "Group",
		GoalType:          "CPC",
		Clicks:            &clicks,
		Cost:              &cost,
		LoadedAt:          time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Source:            "stackadapt_graphql_api",
	}
}

func TestAdsRowSave(t *testing.T) {
	row := adsRow{Record: testRecord()}
	values, dedupeID, err := row.Save()
	require.NoError(t, err)

	// dedupe ID covers the upsert key
	assert.Equal(t, "ad-1.2025-06-01", dedupeID)

	assert.Equal(t, "ad-1", values["ad_id"])
	assert.Equal(t, "2025-06-01", values["date"])
	assert.Equal(t, "CPC", values["goalType"])
	assert.Equal(t, int64(42), values["clicks"])
	assert.Equal(t, 1234.5, values["cost"])
	assert.Equal(t, "stackadapt_graphql_api", values["_source"])

	// absent metrics load as NULL
	assert.Nil(t, values["impressions"])
	assert.Nil(t, values["frequency"])
}

func TestSaveCoversSchema(t *testing.T) {
	values, _, err := (&adsRow{Record: testRecord()}).Save()
	require.NoError(t, err)

	schemaNames := lo.Map(adsSchema, func(f *bigquery.FieldSchema, _ int) string { return f.Name })
	assert.Len(t, values, len(schemaNames))
	for _, name := range schemaNames {
		assert.Contains(t, values, name, "schema column %s missing from Save", name)
	}

	// merge columns plus the upsert key cover the whole schema
	assert.ElementsMatch(t, schemaNames, append([]string{"ad_id", "date"}, mergeColumns...))
}

func TestMergeSQL(t *testing.T) {
	loader := testLoader()
	sql := loader.mergeSQL()

	assert.Contains(t, sql, "MERGE `test-project.raw_ads.stackadapt_ads` AS target")
	assert.Contains(t, sql, "USING `test-project.raw_ads.stackadapt_ads_temp` AS source")
	assert.Contains(t, sql, "ON target.ad_id = source.ad_id AND target.date = source.date")
	assert.Contains(t, sql, "`clicks` = source.`clicks`")
	assert.Contains(t, sql, "`_loaded_at` = source.`_loaded_at`")
	assert.Contains(t, sql, "WHEN MATCHED THEN")
	assert.Contains(t, sql, "WHEN NOT MATCHED THEN")

	// the key columns are inserted, never updated
	assert.NotContains(t, sql, "`ad_id` = source.`ad_id`")
	assert.NotContains(t, sql, "`date` = source.`date`")
}

func TestCreateMainSQL(t *testing.T) {
	sql := testLoader().createMainSQL()
	assert.Contains(t, sql, "CREATE TABLE `test-project.raw_ads.stackadapt_ads`")
	assert.Contains(t, sql, "SELECT * FROM `test-project.raw_ads.stackadapt_ads_temp`")
}

func TestSummarySQL(t *testing.T) {
	sql := testLoader().summarySQL(DefaultTempTable)

	assert.Contains(t, sql, "FROM `test-project.raw_ads.stackadapt_ads_temp`")
	assert.Contains(t, sql, "COUNT(DISTINCT ad_id) AS num_ads")
	assert.Contains(t, sql, "SAFE_DIVIDE(SUM(clicks), SUM(impressions)) AS ctr")
	assert.Contains(t, sql, "SAFE_DIVIDE(SUM(cost), SUM(clicks)) / 100.0 AS cpc_dollars")
	assert.Contains(t, sql, "SAFE_DIVIDE(SUM(cost), SUM(impressions)) * 10 AS cpm_dollars")
	assert.Contains(t, sql, "GROUP BY date, campaign_group_name, campaign_name")
	assert.Contains(t, sql, "ORDER BY date DESC, total_cost_dollars DESC")
	assert.Contains(t, sql, "LIMIT 20")
}

func TestDateRangeSQL(t *testing.T) {
	sql := testLoader().dateRangeSQL(DefaultTempTable)

	assert.Contains(t, sql, "FROM `test-project.raw_ads.stackadapt_ads_temp`")
	assert.Contains(t, sql, "CAST(MIN(date) AS STRING) AS earliest_date")
	assert.Contains(t, sql, "CAST(MAX(date) AS STRING) AS latest_date")
	assert.Contains(t, sql, "COUNT(DISTINCT date) AS days_of_data")
	assert.Contains(t, sql, "COUNT(DISTINCT campaign_group_id) AS num_campaign_groups")
	assert.Contains(t, sql, "COUNT(DISTINCT campaign_id) AS num_campaigns")
	assert.Contains(t, sql, "COUNT(DISTINCT ad_id) AS num_ads")
}

func TestLoaderTableNames(t *testing.T) {
	loader := testLoader()
	assert.Equal(t, DefaultTempTable, loader.TempTable)
	assert.Equal(t, DefaultMainTable, loader.MainTable)
	assert.Equal(t, "test-project.raw_ads.custom", loader.tableID("custom"))

	custom := NewAdsLoader(loader.Client, &model.BigQueryConfig{TempTable: "stage", MainTable: "ads"})
	assert.Equal(t, "stage", custom.TempTable)
	assert.Equal(t, "ads", custom.MainTable)
}

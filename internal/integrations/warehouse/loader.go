package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	DefaultTempTable = "stackadapt_ads_temp"
	DefaultMainTable = "stackadapt_ads"

	insertChunkSize = 500
	summaryLimit    = 20
)

// AdsLoader moves flattened ad performance rows into the warehouse: rows
// are staged in a temp table which is then merged into the main table with
// upsert semantics on (ad_id, date).
type AdsLoader struct {
	Client    *Client
	TempTable string
	MainTable string
	Logger    *zerolog.Logger
}

func NewAdsLoader(client *Client, cfg *model.BigQueryConfig) *AdsLoader {
	tempTable := cfg.TempTable
	if tempTable == "" {
		tempTable = DefaultTempTable
	}
	mainTable := cfg.MainTable
	if mainTable == "" {
		mainTable = DefaultMainTable
	}
	return &AdsLoader{
		Client:    client,
		TempTable: tempTable,
		MainTable: mainTable,
		Logger:    logging.NewLogger("info", "component", "AdsLoader"),
	}
}

func (l *AdsLoader) tableID(table string) string {
	return fmt.Sprintf("%s.%s.%s", l.Client.ProjectID, l.Client.Dataset, table)
}

// ReplaceTempTable drops and recreates the staging table so every run
// starts from an empty stage.
func (l *AdsLoader) ReplaceTempTable(ctx context.Context) error {
	table := l.Client.Table(l.TempTable)
	if err := table.Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete temp table: %w", err)
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: adsSchema}); err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	l.Logger.Info().Str("table", l.tableID(l.TempTable)).Msg("Replaced temp table")
	return nil
}

// LoadRecords streams records into the staging table and returns the number
// of rows inserted.
func (l *AdsLoader) LoadRecords(ctx context.Context, records []model.AdPerformanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	inserter := l.Client.Table(l.TempTable).Inserter()
	inserter.SkipInvalidRows = false
	inserter.IgnoreUnknownValues = true

	count := 0
	for _, chunk := range lo.Chunk(records, insertChunkSize) {
		rows := lo.Map(chunk, func(rec model.AdPerformanceRecord, _ int) *adsRow {
			return &adsRow{Record: rec}
		})
		if err := inserter.Put(ctx, rows); err != nil {
			return count, fmt.Errorf("insert into %s: %w", l.TempTable, err)
		}
		count += len(chunk)
	}
	l.Logger.Info().Str("rows", humanize.Comma(int64(count))).Str("table", l.tableID(l.TempTable)).Msg("Loaded performance records")
	return count, nil
}

// MergeIntoMain upserts the staged rows into the main table. When the main
// table does not exist yet it is created as a copy of the temp table.
func (l *AdsLoader) MergeIntoMain(ctx context.Context) error {
	exists, err := l.tableExists(ctx, l.MainTable)
	if err != nil {
		return err
	}

	var sql string
	if !exists {
		l.Logger.Info().Str("table", l.MainTable).Msg("Main table does not exist, creating from temp table")
		sql = l.createMainSQL()
	} else {
		l.Logger.Info().Str("table", l.MainTable).Msg("Merging temp table into main table")
		sql = l.mergeSQL()
	}

	if err := l.runQuery(ctx, sql); err != nil {
		return fmt.Errorf("merge into %s: %w", l.MainTable, err)
	}
	l.Logger.Info().Str("table", l.tableID(l.MainTable)).Msg("Merge complete")
	return nil
}

func (l *AdsLoader) tableExists(ctx context.Context, table string) (bool, error) {
	_, err := l.Client.Table(table).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("table metadata %s: %w", table, err)
}

func (l *AdsLoader) createMainSQL() string {
	return fmt.Sprintf("CREATE TABLE `%s` AS\nSELECT * FROM `%s`",
		l.tableID(l.MainTable), l.tableID(l.TempTable))
}

func (l *AdsLoader) mergeSQL() string {
	assignments := lo.Map(mergeColumns, func(col string, _ int) string {
		return fmt.Sprintf("    `%s` = source.`%s`", col, col)
	})
	insertColumns := append([]string{"ad_id", "date"}, mergeColumns...)
	quoted := lo.Map(insertColumns, func(col string, _ int) string {
		return fmt.Sprintf("`%s`", col)
	})
	sourced := lo.Map(insertColumns, func(col string, _ int) string {
		return fmt.Sprintf("source.`%s`", col)
	})

	return fmt.Sprintf(`MERGE `+"`%s`"+` AS target
USING `+"`%s`"+` AS source
ON target.ad_id = source.ad_id AND target.date = source.date
WHEN MATCHED THEN
  UPDATE SET
%s
WHEN NOT MATCHED THEN
  INSERT (%s)
  VALUES (%s)`,
		l.tableID(l.MainTable), l.tableID(l.TempTable),
		strings.Join(assignments, ",\n"),
		strings.Join(quoted, ", "),
		strings.Join(sourced, ", "))
}

func (l *AdsLoader) runQuery(ctx context.Context, sql string) error {
	q := l.Client.Query(sql)
	job, err := q.Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// TableInfo describes one table of the dataset.
type TableInfo struct {
	TableID  string    `bigquery:"-"`
	Table    string    `bigquery:"table_name"`
	Created  time.Time `bigquery:"created"`
	Modified time.Time `bigquery:"modified"`
	NumRows  int64     `bigquery:"row_count"`
	NumBytes int64     `bigquery:"size_bytes"`
}

// TableInfo reads row count and size of a table via the dataset's
// __TABLES__ metadata, nil when the table does not exist.
func (l *AdsLoader) TableInfo(ctx context.Context, table string) (*TableInfo, error) {
	sql := fmt.Sprintf(`SELECT
    table_id AS table_name,
    TIMESTAMP_MILLIS(creation_time) AS created,
    TIMESTAMP_MILLIS(last_modified_time) AS modified,
    row_count,
    size_bytes
FROM `+"`%s.%s.__TABLES__`"+`
WHERE table_id = @table`, l.Client.ProjectID, l.Client.Dataset)

	q := l.Client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "table", Value: table},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	var info TableInfo
	if err := it.Next(&info); err != nil {
		if err == iterator.Done {
			return nil, nil // table absent
		}
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	info.TableID = l.tableID(table)
	return &info, nil
}

// LogTableInfo logs human readable table stats after a load.
func (l *AdsLoader) LogTableInfo(ctx context.Context, table string) {
	info, err := l.TableInfo(ctx, table)
	if err != nil || info == nil {
		l.Logger.Warn().Err(err).Str("table", table).Msg("Failed to read table info")
		return
	}
	l.Logger.Info().
		Str("table", info.TableID).
		Str("rows", humanize.Comma(info.NumRows)).
		Str("size", humanize.Bytes(uint64(info.NumBytes))).
		Time("modified", info.Modified).
		Msg("Table info")
}

// CampaignSummary aggregates one campaign's performance on one day. Cost
// comes back from StackAdapt in cents, the derived columns are in dollars.
type CampaignSummary struct {
	Date          string   `bigquery:"date"`
	CampaignGroup string   `bigquery:"campaign_group_name"`
	Campaign      string   `bigquery:"campaign_name"`
	NumAds        int64    `bigquery:"num_ads"`
	Impressions   *int64   `bigquery:"total_impressions"`
	Clicks        *int64   `bigquery:"total_clicks"`
	CostDollars   *float64 `bigquery:"total_cost_dollars"`
	Ctr           *float64 `bigquery:"ctr"`
	CpcDollars    *float64 `bigquery:"cpc_dollars"`
	CpmDollars    *float64 `bigquery:"cpm_dollars"`
}

func (l *AdsLoader) summarySQL(table string) string {
	return fmt.Sprintf(`SELECT
    CAST(date AS STRING) AS date,
    campaign_group_name,
    campaign_name,
    COUNT(DISTINCT ad_id) AS num_ads,
    SUM(impressions) AS total_impressions,
    SUM(clicks) AS total_clicks,
    SUM(cost) / 100.0 AS total_cost_dollars,
    SAFE_DIVIDE(SUM(clicks), SUM(impressions)) AS ctr,
    SAFE_DIVIDE(SUM(cost), SUM(clicks)) / 100.0 AS cpc_dollars,
    SAFE_DIVIDE(SUM(cost), SUM(impressions)) * 10 AS cpm_dollars
FROM `+"`%s`"+`
GROUP BY date, campaign_group_name, campaign_name
ORDER BY date DESC, total_cost_dollars DESC
LIMIT %d`, l.tableID(table), summaryLimit)
}

// PerformanceSummary returns the top campaigns of a table by spend, with CTR,
// CPC and CPM derived from the raw metrics.
func (l *AdsLoader) PerformanceSummary(ctx context.Context, table string) ([]CampaignSummary, error) {
	it, err := l.Client.Query(l.summarySQL(table)).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("performance summary %s: %w", table, err)
	}
	var rows []CampaignSummary
	for {
		var row CampaignSummary
		if err := it.Next(&row); err != nil {
			if err == iterator.Done {
				return rows, nil
			}
			return nil, fmt.Errorf("performance summary %s: %w", table, err)
		}
		rows = append(rows, row)
	}
}

// RangeStats describes the date span covered by a table.
type RangeStats struct {
	EarliestDate   *string `bigquery:"earliest_date"`
	LatestDate     *string `bigquery:"latest_date"`
	DaysOfData     int64   `bigquery:"days_of_data"`
	TotalRows      int64   `bigquery:"total_rows"`
	CampaignGroups int64   `bigquery:"num_campaign_groups"`
	Campaigns      int64   `bigquery:"num_campaigns"`
	Ads            int64   `bigquery:"num_ads"`
}

func (l *AdsLoader) dateRangeSQL(table string) string {
	return fmt.Sprintf(`SELECT
    CAST(MIN(date) AS STRING) AS earliest_date,
    CAST(MAX(date) AS STRING) AS latest_date,
    COUNT(DISTINCT date) AS days_of_data,
    COUNT(*) AS total_rows,
    COUNT(DISTINCT campaign_group_id) AS num_campaign_groups,
    COUNT(DISTINCT campaign_id) AS num_campaigns,
    COUNT(DISTINCT ad_id) AS num_ads
FROM `+"`%s`", l.tableID(table))
}

// DateRange returns the date span and distinct entity counts of a table.
func (l *AdsLoader) DateRange(ctx context.Context, table string) (*RangeStats, error) {
	it, err := l.Client.Query(l.dateRangeSQL(table)).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("date range %s: %w", table, err)
	}
	var stats RangeStats
	if err := it.Next(&stats); err != nil {
		return nil, fmt.Errorf("date range %s: %w", table, err)
	}
	return &stats, nil
}

// LogRunStats logs the campaign performance summary and the date range of a
// table after a run, mirroring what analysts check first after a load.
func (l *AdsLoader) LogRunStats(ctx context.Context, table string) {
	summary, err := l.PerformanceSummary(ctx, table)
	if err != nil {
		l.Logger.Warn().Err(err).Str("table", table).Msg("Failed to read performance summary")
	}
	for _, row := range summary {
		l.Logger.Info().
			Str("date", row.Date).
			Str("campaignGroup", row.CampaignGroup).
			Str("campaign", row.Campaign).
			Int64("ads", row.NumAds).
			Int64("impressions", lo.FromPtr(row.Impressions)).
			Int64("clicks", lo.FromPtr(row.Clicks)).
			Float64("costUsd", lo.FromPtr(row.CostDollars)).
			Float64("ctr", lo.FromPtr(row.Ctr)).
			Float64("cpcUsd", lo.FromPtr(row.CpcDollars)).
			Float64("cpmUsd", lo.FromPtr(row.CpmDollars)).
			Msg("Campaign performance")
	}

	stats, err := l.DateRange(ctx, table)
	if err != nil {
		l.Logger.Warn().Err(err).Str("table", table).Msg("Failed to read date range")
		return
	}
	l.Logger.Info().
		Str("table", l.tableID(table)).
		Str("earliest", lo.FromPtr(stats.EarliestDate)).
		Str("latest", lo.FromPtr(stats.LatestDate)).
		Int64("days", stats.DaysOfData).
		Str("rows", humanize.Comma(stats.TotalRows)).
		Int64("campaignGroups", stats.CampaignGroups).
		Int64("campaigns", stats.Campaigns).
		Int64("ads", stats.Ads).
		Msg("Date range of staged data")
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return false
}

package metricstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

// providerCategory filters warehouse rows to advertising data. The shared
// views also carry email and organic rows under other data_source values.
const providerCategory = "Ad Providers"

// retryBackoff returns the sleep before retry attempt n (0-based).
func retryBackoff(n int) time.Duration {
	return 100 * time.Millisecond * time.Duration(math.Pow(4, float64(n)))
}

// PoolConfig carries connection pool settings for the warehouse handle.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ClickHouse is the warehouse-backed Store. Each tenant code resolves to a
// dedicated view through the registry; rows with unparsable numeric fields
// are dropped and counted, never coerced to zero.
type ClickHouse struct {
	DB       *sql.DB
	Tenants  map[string]string
	Metrics  observability.MetricsRegistry
	RetryMax int
	Logger   *zap.Logger
}

var _ Store = (*ClickHouse)(nil)

// InitClickHouse connects to the warehouse with tracing instrumentation and
// connection pooling, and verifies the connection with a ping.
func InitClickHouse(dsn string, tenants map[string]string, pool PoolConfig, retryMax int, metrics observability.MetricsRegistry, logger *zap.Logger) (*ClickHouse, error) {
	driverName, err := otelsql.Register("clickhouse",
		otelsql.WithAttributes(
			attribute.String("db.system", "clickhouse"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	logger.Info("Connected to ClickHouse")
	return &ClickHouse{DB: db, Tenants: tenants, Metrics: metrics, RetryMax: retryMax, Logger: logger}, nil
}

// Close terminates the warehouse connection.
func (c *ClickHouse) Close() {
	if c != nil && c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error("clickhouse close", zap.Error(err))
		}
	}
}

func (c *ClickHouse) view(tenant string) (string, error) {
	view, ok := c.Tenants[tenant]
	if !ok {
		return "", fmt.Errorf("tenant %q: %w", tenant, models.ErrUnknownTenant)
	}
	return view, nil
}

// queryWithRetry runs the query, retrying transient failures with exponential
// backoff. A terminal failure is wrapped in models.ErrUpstreamUnavailable.
func (c *ClickHouse) queryWithRetry(ctx context.Context, name, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	defer func() {
		c.Metrics.RecordWarehouseQueryLatency(name, time.Since(start))
	}()

	var lastErr error
	for attempt := 0; attempt < c.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff(attempt - 1)):
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: %w: %v", name, models.ErrUpstreamUnavailable, ctx.Err())
			}
		}
		rows, err := c.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		c.Logger.Warn("warehouse query failed",
			zap.String("query", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("%s after %d attempts: %w: %v", name, c.RetryMax, models.ErrUpstreamUnavailable, lastErr)
}

// rawRow mirrors one warehouse row before numeric parsing. The shared views
// export numeric columns as strings.
type rawRow struct {
	Date           time.Time
	AdID           string
	AdName         string
	Provider       string
	Store          string
	CampaignStatus string
	Spend          string
	ROAS           string
	Impressions    string
	Clicks         string
	Conversions    string
	CPM            string
	CPA            string
	DailyBudget    string
}

// parseRow converts a raw warehouse row into an AdRecord. Any unparsable
// numeric field invalidates the whole row.
func parseRow(raw rawRow) (models.AdRecord, error) {
	r := models.AdRecord{
		AdID:           raw.AdID,
		AdName:         raw.AdName,
		Provider:       models.Provider(raw.Provider),
		Store:          raw.Store,
		CampaignStatus: raw.CampaignStatus,
		Date:           raw.Date.UTC().Truncate(24 * time.Hour),
	}
	var err error
	if r.Spend, err = strconv.ParseFloat(raw.Spend, 64); err != nil {
		return r, fmt.Errorf("spend %q: %w", raw.Spend, err)
	}
	if r.ROAS, err = strconv.ParseFloat(raw.ROAS, 64); err != nil {
		return r, fmt.Errorf("roas %q: %w", raw.ROAS, err)
	}
	if r.Impressions, err = strconv.ParseInt(raw.Impressions, 10, 64); err != nil {
		return r, fmt.Errorf("impressions %q: %w", raw.Impressions, err)
	}
	if r.Clicks, err = strconv.ParseInt(raw.Clicks, 10, 64); err != nil {
		return r, fmt.Errorf("clicks %q: %w", raw.Clicks, err)
	}
	if r.Conversions, err = strconv.ParseInt(raw.Conversions, 10, 64); err != nil {
		return r, fmt.Errorf("conversions %q: %w", raw.Conversions, err)
	}
	if r.CPM, err = strconv.ParseFloat(raw.CPM, 64); err != nil {
		return r, fmt.Errorf("cpm %q: %w", raw.CPM, err)
	}
	if r.CPA, err = strconv.ParseFloat(raw.CPA, 64); err != nil {
		return r, fmt.Errorf("cpa %q: %w", raw.CPA, err)
	}
	if raw.DailyBudget != "" {
		if r.DailyBudget, err = strconv.ParseFloat(raw.DailyBudget, 64); err != nil {
			return r, fmt.Errorf("daily_budget %q: %w", raw.DailyBudget, err)
		}
	}
	return r, nil
}

const recordColumns = `date, ad_id, ad_name, provider, store, campaign_status,
       spend, roas, impressions, clicks, conversions, cpm, cpa, daily_budget`

// fetchRecords reads per-(ad, day) rows for a tenant over the trailing
// windowDays. The second result counts rows dropped during parsing.
func (c *ClickHouse) fetchRecords(ctx context.Context, name, tenant string, windowDays int, adID string) ([]models.AdRecord, int, error) {
	view, err := c.view(tenant)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
WHERE data_source = ? AND date >= today() - ?`, recordColumns, view)
	args := []interface{}{providerCategory, windowDays}
	if adID != "" {
		query += ` AND ad_id = ?`
		args = append(args, adID)
	}
	query += ` ORDER BY ad_id, date`

	rows, err := c.queryWithRetry(ctx, name, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			c.Logger.Warn("rows close", zap.Error(err))
		}
	}()

	var records []models.AdRecord
	dropped := 0
	for rows.Next() {
		var raw rawRow
		if err := rows.Scan(&raw.Date, &raw.AdID, &raw.AdName, &raw.Provider, &raw.Store, &raw.CampaignStatus,
			&raw.Spend, &raw.ROAS, &raw.Impressions, &raw.Clicks, &raw.Conversions, &raw.CPM, &raw.CPA, &raw.DailyBudget); err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		rec, err := parseRow(raw)
		if err != nil {
			dropped++
			c.Logger.Warn("dropping unparsable warehouse row",
				zap.String("ad_id", raw.AdID),
				zap.Time("date", raw.Date),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	c.Metrics.AddWarehouseDroppedRecords(name, dropped)
	return records, dropped, nil
}

// FetchAdSummaries implements Store.
func (c *ClickHouse) FetchAdSummaries(ctx context.Context, tenant string, windowDays int) ([]models.AdSummary, int, error) {
	records, dropped, err := c.fetchRecords(ctx, "ad_summaries", tenant, windowDays, "")
	if err != nil {
		return nil, 0, err
	}
	return Summarize(records), dropped, nil
}

// FetchDailySeries implements Store.
func (c *ClickHouse) FetchDailySeries(ctx context.Context, tenant, adID string, metric models.Metric, windowDays int) ([]DailyPoint, error) {
	records, _, err := c.fetchRecords(ctx, "daily_series", tenant, windowDays, adID)
	if err != nil {
		return nil, err
	}
	return SeriesFor(records, adID, metric), nil
}

// FetchAccountDailyTotals implements Store.
func (c *ClickHouse) FetchAccountDailyTotals(ctx context.Context, tenant string, metric models.Metric, windowDays int) ([]DailyPoint, error) {
	records, _, err := c.fetchRecords(ctx, "account_totals", tenant, windowDays, "")
	if err != nil {
		return nil, err
	}
	return AccountTotals(records, metric), nil
}

// FetchFunnelSnapshot implements Store. Recent funnel covers the trailing
// windowHours in whole UTC days; historical covers the 30 days before that.
func (c *ClickHouse) FetchFunnelSnapshot(ctx context.Context, tenant, adID string, windowHours int) (FunnelSnapshot, error) {
	recentDays := (windowHours + 23) / 24
	records, _, err := c.fetchRecords(ctx, "funnel_snapshot", tenant, recentDays+30, adID)
	if err != nil {
		return FunnelSnapshot{}, err
	}
	return BuildFunnelSnapshot(records, adID, windowHours, time.Now().UTC()), nil
}

// FetchBudgetPosture implements Store.
func (c *ClickHouse) FetchBudgetPosture(ctx context.Context, tenant, adID string) (BudgetPosture, error) {
	records, _, err := c.fetchRecords(ctx, "budget_posture", tenant, 3, adID)
	if err != nil {
		return BudgetPosture{}, err
	}
	return BuildBudgetPosture(records, adID), nil
}

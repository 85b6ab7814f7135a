// Command fake_data seeds a ClickHouse tenant view with synthetic daily ad
// performance rows for local runs. Most ads get steady metrics with small
// jitter; a configurable handful get injected problems (ROAS collapse, CPM
// spike, zero conversions) so a local analyze pass has something to find.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

var (
	tenant  = flag.String("tenant", "wh", "tenant code from the registry")
	adCount = flag.Int("ads", 40, "number of ads")
	days    = flag.Int("days", 30, "days of history")
	broken  = flag.Int("broken", 3, "ads with an injected problem")
	seed    = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

var providers = []models.Provider{
	models.ProviderFacebook, models.ProviderGoogle, models.ProviderTikTok, models.ProviderAmazon,
}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	view, ok := cfg.Tenants[*tenant]
	if !ok {
		logger.Fatal("unknown tenant", zap.String("tenant", *tenant))
	}

	db, err := sql.Open("clickhouse", cfg.ClickHouseDSN)
	if err != nil {
		logger.Fatal("connect clickhouse", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("ping clickhouse", zap.Error(err))
	}

	r := rand.New(rand.NewSource(*seed))
	today := time.Now().UTC().Truncate(24 * time.Hour)

	insert := fmt.Sprintf(`INSERT INTO %s
(date, data_source, ad_id, ad_name, provider, store, campaign_status,
 spend, roas, impressions, clicks, conversions, cpm, cpa, daily_budget)
VALUES (?, 'Ad Providers', ?, ?, ?, ?, 'active', ?, ?, ?, ?, ?, ?, ?, ?)`, view)

	rows := 0
	for i := 0; i < *adCount; i++ {
		adID := fmt.Sprintf("ad-%04d", i)
		adName := fmt.Sprintf("Campaign %04d", i)
		provider := providers[r.Intn(len(providers))]
		baseSpend := 50 + r.Float64()*450
		baseROAS := 1.5 + r.Float64()*4
		baseCTR := 0.01 + r.Float64()*0.03
		budget := baseSpend * (1.1 + r.Float64())
		problem := i < *broken

		for d := *days - 1; d >= 0; d-- {
			date := today.AddDate(0, 0, -d)
			spend := jitter(r, baseSpend)
			roas := jitter(r, baseROAS)
			impressions := int64(spend / 0.008)
			clicks := int64(float64(impressions) * jitter(r, baseCTR))
			conversions := int64(float64(clicks) * 0.05)
			cpm := spend / float64(impressions) * 1000

			// inject the problem over the trailing week
			if problem && d < 7 {
				switch i % 3 {
				case 0:
					roas = baseROAS * 0.1
				case 1:
					cpm *= 1.6
					spend *= 1.6
				case 2:
					conversions = 0
					roas = 0
				}
			}

			var cpa float64
			if conversions > 0 {
				cpa = spend / float64(conversions)
			}

			if _, err := db.ExecContext(ctx, insert,
				date, adID, adName, string(provider), "main", fstr(spend), fstr(roas),
				istr(impressions), istr(clicks), istr(conversions), fstr(cpm), fstr(cpa), fstr(budget),
			); err != nil {
				logger.Fatal("insert row", zap.String("ad_id", adID), zap.Error(err))
			}
			rows++
		}
	}

	logger.Info("seeded warehouse",
		zap.String("tenant", *tenant),
		zap.String("view", view),
		zap.Int("ads", *adCount),
		zap.Int("rows", rows),
	)
}

// jitter returns v multiplied by a factor in [0.9, 1.1).
func jitter(r *rand.Rand, v float64) float64 {
	return v * (0.9 + r.Float64()*0.2)
}

// The shared views export numeric columns as strings.
func fstr(v float64) string { return fmt.Sprintf("%.4f", v) }
func istr(v int64) string   { return fmt.Sprintf("%d", v) }

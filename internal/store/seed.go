package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"signal-relay-go/internal/models"

	"github.com/shopspring/decimal"
)

type seedRow struct {
	name       string
	action     models.Action
	timeframe  string
	tokenPrice int64
	usdtPrice  int64
	indicator  string
}

type seedSeries struct {
	step time.Duration
	rows []seedRow
}

// Each series walks backwards in time from a random start within the last day.
var seedData = []seedSeries{
	{step: 60 * time.Minute, rows: []seedRow{
		{"AAAA", models.ActionBuy, "1h", 130, 13000, "RSI"},
		{"AAAA", models.ActionSell, "1h", 120, 12000, "RSI"},
		{"AAAA", models.ActionBuy, "1h", 100, 10000, "RSI"},
	}},
	{step: time.Minute, rows: []seedRow{
		{"BBBB", models.ActionSell, "1m", 50, 5000, "RSI"},
		{"BBBB", models.ActionBuy, "1m", 40, 4000, "RSI"},
		{"BBBB", models.ActionSell, "1m", 45, 4500, "RSI"},
		{"BBBB", models.ActionBuy, "1m", 50, 5000, "RSI"},
	}},
	{step: 10 * time.Minute, rows: []seedRow{
		{"CCCC", models.ActionSell, "10m", 80, 8000, "SuperTrend"},
		{"CCCC", models.ActionBuy, "10m", 100, 10000, "SuperTrend"},
		{"CCCC", models.ActionSell, "10m", 90, 9000, "SuperTrend"},
		{"CCCC", models.ActionBuy, "10m", 80, 8000, "SuperTrend"},
	}},
	{step: time.Minute, rows: []seedRow{
		{"DDDD", models.ActionSell, "1m", 65, 6500, "Volume"},
		{"DDDD", models.ActionBuy, "1m", 60, 6000, "Volume"},
		{"DDDD", models.ActionSell, "1m", 75, 7500, "Volume"},
		{"DDDD", models.ActionBuy, "1m", 60, 6000, "Volume"},
	}},
	{step: 60 * time.Minute, rows: []seedRow{
		{"EEEE", models.ActionSell, "1h", 190, 19000, "SuperTrend"},
		{"EEEE", models.ActionBuy, "1h", 160, 16000, "SuperTrend"},
	}},
}

// GenerateTestData builds the synthetic dashboard rows used by PUT /data.
func GenerateTestData(now time.Time, rng *rand.Rand) []models.TransactionRecord {
	var out []models.TransactionRecord
	for _, series := range seedData {
		offset := time.Duration(rng.Intn(60*24)) * time.Minute
		ts := now.Add(-offset).UTC()
		for _, row := range series.rows {
			out = append(out, models.TransactionRecord{
				Name:       row.name,
				Action:     row.action,
				Timeframe:  row.timeframe,
				TokenPrice: models.NewAmount(decimal.NewFromInt(row.tokenPrice)),
				UsdtPrice:  models.NewAmount(decimal.NewFromInt(row.usdtPrice)),
				Datetime:   ts,
				Indicator:  row.indicator,
			})
			ts = ts.Add(-series.step)
		}
	}
	return out
}

// SeedTestData inserts GenerateTestData rows in one batch.
func (s *GormStore) SeedTestData(ctx context.Context, now time.Time, rng *rand.Rand) (int, error) {
	rows := GenerateTestData(now, rng)
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("seed test data: %w", err)
	}
	return len(rows), nil
}

package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-dashboard/models"
)

// mockCompanies names the symbols the e2e server knows about. Any other
// symbol is reported as having no data.
var mockCompanies = map[string]string{
	"RELIANCE.NS":  "Reliance Industries Limited",
	"TCS.NS":       "Tata Consultancy Services Limited",
	"INFY.NS":      "Infosys Limited",
	"HDFCBANK.NS":  "HDFC Bank Limited",
	"ICICIBANK.NS": "ICICI Bank Limited",
	"WIPRO.NS":     "Wipro Limited",
}

const maxMockBars = 400

// MockQuoteService returns deterministic bars for e2e testing
type MockQuoteService struct {
	now func() time.Time
}

func NewMockQuoteService() *MockQuoteService {
	return &MockQuoteService{now: time.Now}
}

// Fetch builds a short walk per symbol seeded by the symbol name so that
// repeated runs render the same charts.
func (m *MockQuoteService) Fetch(ctx context.Context, symbols []string, period models.Period) (models.QuoteSeries, error) {
	series := models.NewQuoteSeries(period)
	series.FetchedAt = m.now()

	end := m.now().UTC().Truncate(time.Minute)
	start := period.Start(end)
	step := barStep(period.Interval())
	if earliest := end.Add(-maxMockBars * step); start.Before(earliest) {
		start = earliest
	}
	for _, sym := range symbols {
		name, ok := mockCompanies[sym]
		if !ok {
			series.Bars[sym] = []models.Bar{}
			continue
		}
		series.Names[sym] = name
		series.Bars[sym] = walk(sym, start, end, step)
	}
	return series, nil
}

func barStep(interval models.Interval) time.Duration {
	switch interval {
	case models.Interval1Minute:
		return time.Minute
	case models.Interval5Minutes:
		return 5 * time.Minute
	case models.Interval1Hour:
		return time.Hour
	case models.Interval1Week:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func walk(symbol string, start, end time.Time, step time.Duration) []models.Bar {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	seed := h.Sum32()

	price := decimal.NewFromInt(int64(500 + seed%3000))
	var bars []models.Bar
	for t := start; !t.After(end) && len(bars) <= maxMockBars; t = t.Add(step) {
		seed = seed*1664525 + 1013904223
		move := decimal.NewFromInt(int64(seed%41) - 20).Div(decimal.NewFromInt(10))
		open := price
		price = price.Add(move)
		high := decimal.Max(open, price).Add(decimal.NewFromInt(2))
		low := decimal.Min(open, price).Sub(decimal.NewFromInt(2))
		bars = append(bars, models.Bar{
			Timestamp: t,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    int64(100000 + seed%50000),
		})
	}
	return bars
}

// MockNewsService returns canned headlines for e2e testing
type MockNewsService struct {
	now func() time.Time
}

func NewMockNewsService() *MockNewsService {
	return &MockNewsService{now: time.Now}
}

func (m *MockNewsService) Fetch(ctx context.Context, symbol, companyHint string) models.NewsFeed {
	name := companyHint
	if name == "" {
		name = models.SymbolBase(symbol)
	}
	now := m.now().UTC()
	slug := strings.ToLower(models.SymbolBase(symbol))
	return models.NewsFeed{
		Symbol:      symbol,
		CompanyName: name,
		FetchedAt:   now,
		Articles: []models.NewsArticle{
			{
				Title:       fmt.Sprintf("%s shares edge higher in early trade", name),
				Description: "Stock gains as benchmark indices open in the green.",
				URL:         fmt.Sprintf("https://example.com/%s-early-trade", slug),
				Source:      "E2E Wire",
				PublishedAt: now.Add(-90 * time.Minute),
			},
			{
				Title:       fmt.Sprintf("Analysts review outlook for %s", name),
				URL:         fmt.Sprintf("https://example.com/%s-outlook", slug),
				Source:      "E2E Wire",
				PublishedAt: now.Add(-30 * time.Hour),
			},
		},
	}
}

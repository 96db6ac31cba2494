package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock-dashboard/internal/settings"
	"stock-dashboard/models"
)

func sampleState() models.DashboardState {
	return models.DashboardState{
		Status: models.StatusReady,
		Parameters: models.Parameters{
			Symbols: []string{"TCS.NS", "M&M.NS"},
			Period:  models.Period1Month,
			Alert:   models.AlertRule{Symbol: "TCS.NS", Threshold: decimal.NewFromInt(3820)},
		},
		Summary: []models.PriceSummaryRow{
			{Symbol: "TCS.NS", CompanyName: "Tata Consultancy Services", Price: "3838.00", Change: "+38.00", ChangePct: "+1.00%", TrendUp: true},
			{Symbol: "M&M.NS", Price: "2900.00", Change: "-10.00", ChangePct: "n/a"},
		},
		AlertStatus: models.AlertStatus{Triggered: true, Message: "Alert: TCS.NS crossed 3820 (now 3838)"},
		Warnings:    []string{"No data available for WIPRO.NS"},
		News: map[string]models.NewsFeed{
			"TCS.NS": {Symbol: "TCS.NS", Articles: []models.NewsArticle{{
				Title:       "TCS wins <big> deal",
				URL:         "https://example.com/tcs",
				Source:      "Mint",
				PublishedAt: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
			}}},
			"M&M.NS": {Symbol: "M&M.NS", Articles: []models.NewsArticle{}, Unavailable: "news unavailable: NewsAPI key not configured"},
		},
		LastUpdated: time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC),
	}
}

func TestIndex_Render(t *testing.T) {
	var buf bytes.Buffer
	if err := Index(sampleState(), &settings.MaskedAPIKeyConfig{}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Tata Consultancy Services",
		"+1.00%",
		"Alert: TCS.NS crossed 3820 (now 3838)",
		"No data available for WIPRO.NS",
		"TCS wins &lt;big&gt; deal",
		"news unavailable: NewsAPI key not configured",
		`value="TCS.NS, M&amp;M.NS"`,
		`value="3820"`,
		"News is unavailable until a NewsAPI key is entered",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
	if strings.Contains(html, "<big>") {
		t.Error("article titles must be escaped")
	}
}

func TestIndex_CompareModeHidesNews(t *testing.T) {
	state := sampleState()
	state.Parameters.CompareMode = true

	var buf bytes.Buffer
	if err := Index(state, nil).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Latest news") {
		t.Error("news should not render in compare mode")
	}
}

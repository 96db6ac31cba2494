package services

import (
	"context"
	"time"

	"stock-dashboard/models"
)

// ProviderBars is one symbol's answer from a market data provider
type ProviderBars struct {
	Bars        []models.Bar
	CompanyName string
}

// MarketDataProvider fetches OHLCV history for a single symbol.
// A symbol without bars in the window returns an error wrapping ErrNoData.
type MarketDataProvider interface {
	Name() string
	GetBars(ctx context.Context, symbol string, period models.Period) (ProviderBars, error)
}

// NewsQuery is a NewsAPI "everything" search
type NewsQuery struct {
	Query    string
	From, To time.Time
	Limit    int
}

// NewsProvider searches news articles
type NewsProvider interface {
	SearchNews(ctx context.Context, apiKey string, q NewsQuery) ([]models.NewsArticle, error)
}

// CompanyNameResolver looks up a display name for a ticker
type CompanyNameResolver interface {
	CompanyName(ctx context.Context, symbol string) (string, error)
}

// Compile-time interface verification
var _ MarketDataProvider = (*YahooService)(nil)
var _ MarketDataProvider = (*AlpacaService)(nil)
var _ CompanyNameResolver = (*YahooService)(nil)
var _ CompanyNameResolver = (*AlphaVantageService)(nil)
var _ NewsProvider = (*NewsAPIService)(nil)

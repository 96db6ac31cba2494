package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"stock-dashboard/models"
	"stock-dashboard/observability"
)

const defaultFetchConcurrency = 4

// MarketDataClient fetches a watchlist's bars from a provider, one request
// per symbol, and folds per-symbol outcomes into a single QuoteSeries.
type MarketDataClient struct {
	provider    MarketDataProvider
	flight      singleflight.Group
	concurrency int
	now         func() time.Time
}

// NewMarketDataClient creates a client over provider
func NewMarketDataClient(provider MarketDataProvider) *MarketDataClient {
	return &MarketDataClient{
		provider:    provider,
		concurrency: defaultFetchConcurrency,
		now:         time.Now,
	}
}

// Fetch returns bars for symbols over period at the period's fixed interval.
// Symbols without data get an empty sub-series. Only when every symbol
// fails does Fetch return a *DataFetchError. Concurrent calls for the same
// request share one in-flight fetch.
func (c *MarketDataClient) Fetch(ctx context.Context, symbols []string, period models.Period) (models.QuoteSeries, error) {
	if len(symbols) == 0 {
		series := models.NewQuoteSeries(period)
		series.FetchedAt = c.now()
		return series, nil
	}

	key := models.QuoteKey(symbols, period)
	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		return c.fetch(ctx, symbols, period)
	})
	if shared {
		observability.Debug("joined in-flight quote fetch", "key", key)
	}
	if err != nil {
		return models.QuoteSeries{}, err
	}
	return v.(models.QuoteSeries), nil
}

type symbolResult struct {
	bars ProviderBars
	err  error
}

func (c *MarketDataClient) fetch(ctx context.Context, symbols []string, period models.Period) (models.QuoteSeries, error) {
	ctx, span := observability.StartSpan(ctx, "marketdata.Fetch")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	results := make([]symbolResult, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			bars, err := c.provider.GetBars(ctx, sym, period)
			results[i] = symbolResult{bars: bars, err: err}
			return nil
		})
	}
	_ = g.Wait()

	series := models.NewQuoteSeries(period)
	series.FetchedAt = c.now()

	var failures []error
	for i, sym := range symbols {
		res := results[i]
		if res.bars.CompanyName != "" {
			series.Names[sym] = res.bars.CompanyName
		}
		switch {
		case res.err == nil:
			series.Bars[sym] = res.bars.Bars
		case errors.Is(res.err, ErrNoData):
			observability.WithSymbol(sym).Warn("no data returned", "period", period)
			series.Bars[sym] = []models.Bar{}
		default:
			observability.WithSymbol(sym).Warn("quote fetch failed", "provider", c.provider.Name(), "error", res.err)
			series.Bars[sym] = []models.Bar{}
			failures = append(failures, res.err)
		}
	}

	if len(failures) == len(symbols) {
		err = &DataFetchError{Symbols: symbols, Causes: failures}
		return models.QuoteSeries{}, err
	}
	return series, nil
}

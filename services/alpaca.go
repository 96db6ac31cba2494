package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stock-dashboard/models"
	"stock-dashboard/observability"
)

// alpacaBarsClient is the subset of the Alpaca market data client used here
type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaService serves bars for US-listed symbols from Alpaca market data
type AlpacaService struct {
	dataClient alpacaBarsClient
	breakers   *CircuitBreakerRegistry
	now        func() time.Time
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret string) *AlpacaService {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &AlpacaService{
		dataClient: dataClient,
		now:        time.Now,
	}
}

// WithBreakers sets the circuit breaker registry (nil means global)
func (s *AlpacaService) WithBreakers(r *CircuitBreakerRegistry) *AlpacaService {
	s.breakers = r
	return s
}

func (s *AlpacaService) Name() string { return BreakerAlpaca }

// timeFrame maps a dashboard interval to an Alpaca bar timeframe
func timeFrame(interval models.Interval) (marketdata.TimeFrame, error) {
	switch interval {
	case models.Interval1Minute:
		return marketdata.OneMin, nil
	case models.Interval5Minutes:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case models.Interval1Hour:
		return marketdata.OneHour, nil
	case models.Interval1Day:
		return marketdata.OneDay, nil
	case models.Interval1Week:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval %q", interval)
}

// GetBars returns historical bars for a symbol over period
func (s *AlpacaService) GetBars(ctx context.Context, symbol string, period models.Period) (ProviderBars, error) {
	ctx, span := observability.StartSpan(ctx, "alpaca.GetBars")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	tf, err := timeFrame(period.Interval())
	if err != nil {
		return ProviderBars{}, err
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "get_bars")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlpaca, "get_bars")

	end := s.now()
	var bars []marketdata.Bar
	bars, err = ExecuteWithBreaker(ctx, s.breakers, BreakerAlpaca, func() ([]marketdata.Bar, error) {
		return s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  tf,
			Start:      period.Start(end),
			End:        end,
			Adjustment: marketdata.Split,
		})
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "get_bars", "request")
		err = fmt.Errorf("failed to get bars for %s: %w", symbol, err)
		return ProviderBars{}, err
	}
	if len(bars) == 0 {
		err = fmt.Errorf("%s: %w", symbol, ErrNoData)
		return ProviderBars{}, err
	}

	result := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		result = append(result, models.Bar{
			Timestamp: bar.Timestamp.UTC(),
			Open:      decimal.NewFromFloat(bar.Open),
			High:      decimal.NewFromFloat(bar.High),
			Low:       decimal.NewFromFloat(bar.Low),
			Close:     decimal.NewFromFloat(bar.Close),
			Volume:    int64(bar.Volume),
		})
	}

	return ProviderBars{Bars: models.SortBars(result)}, nil
}

// Package analysis derives summary figures and alert outcomes from quote
// series. Every function is pure and tolerates missing or empty input.
package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stock-dashboard/models"
)

var hundred = decimal.NewFromInt(100)

// MetricUndefinedError reports a percent change that cannot be computed
// because the prior price is zero.
type MetricUndefinedError struct {
	Symbol string
}

func (e *MetricUndefinedError) Error() string {
	return fmt.Sprintf("%s: percent change undefined (prior price is zero)", e.Symbol)
}

// DeriveSymbol computes the metrics for one symbol's bars. ok is false
// when there are no bars.
func DeriveSymbol(symbol string, bars []models.Bar) (m models.SymbolMetrics, ok bool) {
	if len(bars) == 0 {
		return models.SymbolMetrics{}, false
	}

	last := bars[len(bars)-1].Close
	prior := last
	if len(bars) > 1 {
		prior = bars[len(bars)-2].Close
	}
	change := last.Sub(prior)

	m = models.SymbolMetrics{
		Symbol:     symbol,
		LastPrice:  last,
		PriorPrice: prior,
		Change:     change,
		TrendUp:    !change.IsNegative(),
		Bars:       len(bars),
	}
	if !prior.IsZero() {
		m.PctChange = decimal.NewNullDecimal(change.Div(prior).Mul(hundred))
	}
	return m, true
}

// Derive computes metrics for every symbol in series with at least one bar
func Derive(series models.QuoteSeries) map[string]models.SymbolMetrics {
	out := make(map[string]models.SymbolMetrics, len(series.Bars))
	for sym, bars := range series.Bars {
		if m, ok := DeriveSymbol(sym, bars); ok {
			out[sym] = m
		}
	}
	return out
}

// Undefined returns a MetricUndefinedError for m when its percent change
// is undefined, nil otherwise.
func Undefined(m models.SymbolMetrics) error {
	if m.PctChange.Valid {
		return nil
	}
	return &MetricUndefinedError{Symbol: m.Symbol}
}

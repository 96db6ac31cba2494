package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Parameters are the user-selected dashboard inputs
type Parameters struct {
	Symbols       []string      `json:"symbols"`
	Period        Period        `json:"period"`
	ShowVolume    bool          `json:"show_volume"`
	CompareMode   bool          `json:"compare_mode"`
	CompareMetric CompareMetric `json:"compare_metric"`
	Alert         AlertRule     `json:"alert"`
}

// Normalize returns a copy with normalized symbols and defaults applied,
// or an error if the parameters cannot be used for a fetch.
func (p Parameters) Normalize() (Parameters, error) {
	out := p
	out.Symbols = NormalizeSymbols(p.Symbols)
	if len(out.Symbols) == 0 {
		return Parameters{}, errors.New("enter at least one stock symbol")
	}
	for _, s := range out.Symbols {
		if err := ValidateSymbol(s); err != nil {
			return Parameters{}, err
		}
	}

	period, err := ParsePeriod(string(p.Period))
	if err != nil {
		return Parameters{}, err
	}
	out.Period = period

	metric, err := ParseCompareMetric(string(p.CompareMetric))
	if err != nil {
		return Parameters{}, err
	}
	out.CompareMetric = metric

	out.Alert.Symbol = ""
	if syms := NormalizeSymbols([]string{p.Alert.Symbol}); len(syms) == 1 {
		if err := ValidateSymbol(syms[0]); err != nil {
			return Parameters{}, fmt.Errorf("alert: %w", err)
		}
		if !slices.Contains(out.Symbols, syms[0]) {
			return Parameters{}, fmt.Errorf("alert symbol %s is not in the watchlist", syms[0])
		}
		out.Alert.Symbol = syms[0]
	} else if p.Alert.Threshold.IsPositive() {
		out.Alert.Symbol = out.Symbols[0]
	}
	return out, nil
}

// Interval returns the bar interval implied by the period
func (p Parameters) Interval() Interval {
	return p.Period.Interval()
}

// RefreshStatus is the state of the refresh loop
type RefreshStatus string

const (
	StatusIdle     RefreshStatus = "idle"
	StatusFetching RefreshStatus = "fetching"
	StatusReady    RefreshStatus = "ready"
	StatusError    RefreshStatus = "error"
)

// RefreshStatuses lists every loop state
func RefreshStatuses() []string {
	return []string{string(StatusIdle), string(StatusFetching), string(StatusReady), string(StatusError)}
}

// DashboardState is everything the presentation layer renders
type DashboardState struct {
	Status      RefreshStatus            `json:"status"`
	Parameters  Parameters               `json:"parameters"`
	Series      *QuoteSeries             `json:"series,omitempty"`
	Metrics     map[string]SymbolMetrics `json:"metrics"`
	Summary     []PriceSummaryRow        `json:"summary"`
	Charts      []ChartSpec              `json:"charts"`
	News        map[string]NewsFeed      `json:"news"`
	AlertStatus AlertStatus              `json:"alert_status"`
	Warnings    []string                 `json:"warnings,omitempty"`
	LastError   string                   `json:"last_error,omitempty"`
	LastUpdated time.Time                `json:"last_updated"`
	CycleID     string                   `json:"cycle_id,omitempty"`
	Sequence    uint64                   `json:"sequence"`
}

// HasData reports whether any quote data has been loaded
func (s DashboardState) HasData() bool {
	return s.Series != nil
}

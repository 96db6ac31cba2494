package models

import "github.com/shopspring/decimal"

// AlertRule is the single price alert of a session. A threshold at or
// below zero means no alert is configured.
type AlertRule struct {
	Symbol    string          `json:"symbol"`
	Threshold decimal.Decimal `json:"threshold"`
}

// Active reports whether the rule can trigger at all
func (r AlertRule) Active() bool {
	return r.Symbol != "" && r.Threshold.IsPositive()
}

// AlertStatus is the outcome of checking the alert rule against a series
type AlertStatus struct {
	Rule       AlertRule       `json:"rule"`
	Active     bool            `json:"active"`
	Triggered  bool            `json:"triggered"`
	LastPrice  decimal.Decimal `json:"last_price"`
	PriorPrice decimal.Decimal `json:"prior_price"`
	Message    string          `json:"message,omitempty"`
}

// SymbolMetrics are the summary figures derived from a symbol's bars.
// PctChange is invalid when the prior price is zero.
type SymbolMetrics struct {
	Symbol     string              `json:"symbol"`
	LastPrice  decimal.Decimal     `json:"last_price"`
	PriorPrice decimal.Decimal     `json:"prior_price"`
	Change     decimal.Decimal     `json:"change"`
	PctChange  decimal.NullDecimal `json:"pct_change"`
	TrendUp    bool                `json:"trend_up"`
	Bars       int                 `json:"bars"`
}

// PriceSummaryRow is one display row of the price summary table
type PriceSummaryRow struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name,omitempty"`
	Price       string `json:"price"`
	Change      string `json:"change"`
	ChangePct   string `json:"change_pct"`
	TrendUp     bool   `json:"trend_up"`
}

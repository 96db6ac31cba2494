package analysis

import (
	"github.com/shopspring/decimal"

	"stock-dashboard/models"
)

// NotAvailable is shown for figures that cannot be computed
const NotAvailable = "n/a"

// FormatPrice renders a price with two decimals
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatChange renders a signed change with two decimals, e.g. +12.50
func FormatChange(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if !d.IsNegative() {
		s = "+" + s
	}
	return s
}

// FormatPctChange renders a signed percentage, or n/a when undefined
func FormatPctChange(d decimal.NullDecimal) string {
	if !d.Valid {
		return NotAvailable
	}
	return FormatChange(d.Decimal) + "%"
}

// SummaryRows builds the price summary table in watchlist order. Symbols
// without metrics are skipped.
func SummaryRows(symbols []string, metrics map[string]models.SymbolMetrics, names map[string]string) []models.PriceSummaryRow {
	rows := make([]models.PriceSummaryRow, 0, len(symbols))
	for _, sym := range symbols {
		m, ok := metrics[sym]
		if !ok {
			continue
		}
		rows = append(rows, models.PriceSummaryRow{
			Symbol:      sym,
			CompanyName: names[sym],
			Price:       FormatPrice(m.LastPrice),
			Change:      FormatChange(m.Change),
			ChangePct:   FormatPctChange(m.PctChange),
			TrendUp:     m.TrendUp,
		})
	}
	return rows
}

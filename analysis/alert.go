package analysis

import (
	"fmt"

	"stock-dashboard/models"
)

// Triggered checks the alert rule against the last two bars of its symbol.
// It fires when the price moves onto or across the threshold in either
// direction between the prior and the last bar.
func Triggered(rule models.AlertRule, series models.QuoteSeries) models.AlertStatus {
	status := models.AlertStatus{Rule: rule, Active: rule.Active()}
	if !status.Active {
		return status
	}

	bars := series.For(rule.Symbol)
	if len(bars) < 2 {
		return status
	}

	last := bars[len(bars)-1].Close
	prior := bars[len(bars)-2].Close
	status.LastPrice = last
	status.PriorPrice = prior

	t := rule.Threshold
	upward := prior.LessThanOrEqual(t) && last.GreaterThanOrEqual(t)
	downward := prior.GreaterThanOrEqual(t) && last.LessThanOrEqual(t)
	if !upward && !downward {
		return status
	}

	status.Triggered = true
	status.Message = fmt.Sprintf("Alert: %s crossed %s (now %s)",
		rule.Symbol, t.StringFixed(2), last.StringFixed(2))
	return status
}

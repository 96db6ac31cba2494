// Package partials renders the fragments swapped in by HTMX.
package partials

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/a-h/templ"

	"stock-dashboard/internal/settings"
	"stock-dashboard/models"
	"stock-dashboard/templates/components"
)

const timeLayout = "02 Jan 2006 15:04 MST"

// Dashboard renders status, alert, warnings, the price summary, chart specs
// and news for state
func Dashboard(state models.DashboardState) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		pw.Rawf(`<section id="dashboard" data-status="%s" data-sequence="%d">`, state.Status, state.Sequence)

		pw.Rawf(`<p class="status">Status: %s`, state.Status)
		if !state.LastUpdated.IsZero() {
			pw.Rawf(` · updated %s`, state.LastUpdated.Format(timeLayout))
		}
		pw.Raw(`</p>`)

		if state.LastError != "" {
			pw.Component(ctx, components.ErrorState(state.LastError))
		}
		if state.AlertStatus.Triggered {
			pw.Component(ctx, components.Notice("alert", state.AlertStatus.Message))
		}
		for _, warning := range state.Warnings {
			pw.Component(ctx, components.Notice("warning", warning))
		}

		pw.Component(ctx, Summary(state.Summary))
		pw.Component(ctx, Charts(state.Charts))
		if !state.Parameters.CompareMode {
			pw.Component(ctx, News(state.Parameters.Symbols, state.News))
		}

		pw.Raw(`</section>`)
		return pw.Err()
	})
}

// Summary renders the price summary table
func Summary(rows []models.PriceSummaryRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		if len(rows) == 0 {
			pw.Raw(`<p class="empty">No price data yet.</p>`)
			return pw.Err()
		}
		pw.Raw(`<table class="summary"><thead><tr><th>Symbol</th><th>Company</th><th>Price</th><th>Change</th><th>Change %</th></tr></thead><tbody>`)
		for _, row := range rows {
			trend := "down"
			if row.TrendUp {
				trend = "up"
			}
			pw.Rawf(`<tr class="trend-%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				trend, row.Symbol, row.CompanyName, row.Price, row.Change, row.ChangePct)
		}
		pw.Raw(`</tbody></table>`)
		return pw.Err()
	})
}

// Charts renders chart specs as data attributes for a client-side renderer
func Charts(charts []models.ChartSpec) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		pw.Raw(`<div class="charts">`)
		for _, chart := range charts {
			spec, err := json.Marshal(chart)
			if err != nil {
				return err
			}
			pw.Rawf(`<figure class="chart" data-kind="%s" data-spec="%s"><figcaption>%s</figcaption></figure>`,
				chart.Kind, string(spec), chart.Title)
		}
		pw.Raw(`</div>`)
		return pw.Err()
	})
}

// News renders headlines per symbol in watchlist order
func News(symbols []string, feeds map[string]models.NewsFeed) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		pw.Raw(`<div class="news">`)
		for _, sym := range symbols {
			feed, ok := feeds[sym]
			if !ok {
				continue
			}
			heading := sym
			if feed.CompanyName != "" {
				heading = feed.CompanyName + " (" + sym + ")"
			}
			pw.Rawf(`<h3>Latest news: %s</h3>`, heading)
			if !feed.Available() {
				pw.Component(ctx, components.Notice("info", feed.Unavailable))
				continue
			}
			if len(feed.Articles) == 0 {
				pw.Raw(`<p class="empty">No recent articles.</p>`)
				continue
			}
			pw.Raw(`<ul>`)
			for _, a := range feed.Articles {
				pw.Rawf(`<li><a href="%s" rel="noopener" target="_blank">%s</a> <small>%s · %s</small>`,
					templ.URL(a.URL), a.Title, a.Source, a.PublishedAt.Format(timeLayout))
				if a.Description != "" {
					pw.Rawf(`<p>%s</p>`, a.Description)
				}
				pw.Raw(`</li>`)
			}
			pw.Raw(`</ul>`)
		}
		pw.Raw(`</div>`)
		return pw.Err()
	})
}

// ParametersForm renders the watchlist and display controls
func ParametersForm(p models.Parameters) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		pw.Raw(`<form id="parameters" hx-put="/api/parameters" hx-target="#dashboard" hx-swap="outerHTML">`)
		pw.Rawf(`<label>Symbols <input name="symbols" value="%s"></label>`, strings.Join(p.Symbols, ", "))

		pw.Raw(`<label>Period <select name="period">`)
		for _, period := range models.Periods() {
			selected := ""
			if period == p.Period {
				selected = " selected"
			}
			pw.Rawf(`<option value="%s"`, period)
			pw.Raw(selected)
			pw.Rawf(`>%s</option>`, period)
		}
		pw.Raw(`</select></label>`)

		pw.Raw(`<label><input type="checkbox" name="show_volume" value="true"`)
		if p.ShowVolume {
			pw.Raw(` checked`)
		}
		pw.Raw(`> Show volume</label>`)

		pw.Raw(`<label><input type="checkbox" name="compare_mode" value="true"`)
		if p.CompareMode {
			pw.Raw(` checked`)
		}
		pw.Raw(`> Compare</label>`)

		pw.Raw(`<label>Metric <select name="compare_metric">`)
		for _, m := range []models.CompareMetric{models.MetricOpen, models.MetricHigh, models.MetricLow, models.MetricClose, models.MetricVolume} {
			selected := ""
			if m == p.CompareMetric {
				selected = " selected"
			}
			pw.Rawf(`<option value="%s"`, m)
			pw.Raw(selected)
			pw.Rawf(`>%s</option>`, m)
		}
		pw.Raw(`</select></label>`)

		threshold := ""
		if p.Alert.Active() {
			threshold = p.Alert.Threshold.String()
		}
		pw.Raw(`<label>Alert symbol <select name="alert_symbol">`)
		for _, sym := range p.Symbols {
			pw.Rawf(`<option value="%s"`, sym)
			if sym == p.Alert.Symbol {
				pw.Raw(` selected`)
			}
			pw.Rawf(`>%s</option>`, sym)
		}
		pw.Raw(`</select></label>`)
		pw.Rawf(`<label>Alert price <input name="alert_threshold" inputmode="decimal" value="%s"></label>`, threshold)

		pw.Raw(`<button type="submit">Apply</button></form>`)
		return pw.Err()
	})
}

// NewsAPIKeyForm renders the interactive NewsAPI key entry
func NewsAPIKeyForm(status *settings.MaskedAPIKeyConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		pw.Raw(`<form id="newsapi-key" hx-put="/api/settings/newsapi" hx-swap="outerHTML">`)
		if status != nil && status.IsConfigured {
			pw.Rawf(`<p>NewsAPI key: %s (%s)</p>`, status.APIKey, status.Source)
			pw.Raw(`<button type="button" hx-delete="/api/settings/newsapi" hx-target="#newsapi-key" hx-swap="outerHTML">Remove</button>`)
		} else {
			pw.Raw(`<p>News is unavailable until a NewsAPI key is entered. The key is kept in memory only.</p>`)
		}
		pw.Raw(`<input type="password" name="api_key" autocomplete="off" placeholder="NewsAPI key"><button type="submit">Save</button></form>`)
		return pw.Err()
	})
}

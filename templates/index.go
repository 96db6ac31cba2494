// Package templates renders the server-side dashboard page.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"stock-dashboard/internal/settings"
	"stock-dashboard/models"
	"stock-dashboard/templates/components"
	"stock-dashboard/templates/partials"
)

// Index renders the full dashboard page
func Index(state models.DashboardState, newsKey *settings.MaskedAPIKeyConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := components.NewWriter(w)
		pw.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		pw.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		pw.Raw(`<title>Stock Dashboard</title>`)
		pw.Raw(`<script src="https://unpkg.com/htmx.org@1.9.12"></script>`)
		pw.Raw(`</head><body><header><h1>Indian Stock Dashboard</h1></header><main>`)

		pw.Component(ctx, partials.ParametersForm(state.Parameters))
		pw.Raw(`<button hx-post="/api/refresh" hx-swap="none">Refresh now</button>`)
		pw.Component(ctx, partials.NewsAPIKeyForm(newsKey))

		pw.Raw(`<div hx-get="/api/dashboard" hx-trigger="every 30s" hx-target="#dashboard" hx-swap="outerHTML"></div>`)
		pw.Component(ctx, partials.Dashboard(state))

		pw.Raw(`</main></body></html>`)
		return pw.Err()
	})
}

// Package charts turns quote series into renderer-neutral chart specs.
package charts

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stock-dashboard/models"
)

const (
	hoverUnified = "x unified"

	priceHeightRatio  = 0.7
	volumeHeightRatio = 0.3
)

// Builder builds chart specs. It holds only presentation settings.
type Builder struct {
	currency string
}

// NewBuilder creates a Builder labelling price axes with currency
func NewBuilder(currency string) *Builder {
	if currency == "" {
		currency = "₹"
	}
	return &Builder{currency: currency}
}

func (b *Builder) priceAxis() string {
	return fmt.Sprintf("Price (%s)", b.currency)
}

// BuildSingle builds a candlestick chart for one symbol with an optional
// volume panel sharing the time axis. It returns nil when bars is empty.
func (b *Builder) BuildSingle(symbol string, bars []models.Bar, showVolume bool) *models.ChartSpec {
	if len(bars) == 0 {
		return nil
	}

	candles := make([]models.Candle, len(bars))
	for i, bar := range bars {
		candles[i] = models.Candle{
			Time:  bar.Timestamp,
			Open:  bar.Open,
			High:  bar.High,
			Low:   bar.Low,
			Close: bar.Close,
		}
	}

	pricePanel := models.ChartPanel{
		YAxisTitle:  b.priceAxis(),
		HeightRatio: 1,
		Series: []models.ChartSeries{{
			Name:    symbol,
			Type:    models.SeriesCandlestick,
			Candles: candles,
		}},
	}

	spec := &models.ChartSpec{
		Kind:        models.ChartKindSingle,
		Title:       fmt.Sprintf("%s Stock Price", symbol),
		Symbol:      symbol,
		XAxisTitle:  "Date",
		SharedXAxis: showVolume,
		HoverMode:   hoverUnified,
		RangeSlider: false,
	}

	if !showVolume {
		spec.Panels = []models.ChartPanel{pricePanel}
		return spec
	}

	volumes := make([]models.ChartPoint, len(bars))
	for i, bar := range bars {
		volumes[i] = models.ChartPoint{Time: bar.Timestamp, Value: decimal.NewFromInt(bar.Volume)}
	}

	pricePanel.HeightRatio = priceHeightRatio
	spec.Panels = []models.ChartPanel{
		pricePanel,
		{
			YAxisTitle:  "Volume",
			HeightRatio: volumeHeightRatio,
			Series: []models.ChartSeries{{
				Name:   "Volume",
				Type:   models.SeriesBar,
				Points: volumes,
			}},
		},
	}
	return spec
}

// BuildComparison builds one line per symbol for metric. Symbols without
// bars are left out.
func (b *Builder) BuildComparison(symbols []string, series models.QuoteSeries, metric models.CompareMetric) models.ChartSpec {
	if metric == "" {
		metric = models.MetricClose
	}

	yAxis := b.priceAxis()
	if metric == models.MetricVolume {
		yAxis = "Volume"
	}

	lines := make([]models.ChartSeries, 0, len(symbols))
	for _, sym := range symbols {
		bars := series.For(sym)
		if len(bars) == 0 {
			continue
		}
		points := make([]models.ChartPoint, len(bars))
		for i, bar := range bars {
			points[i] = models.ChartPoint{Time: bar.Timestamp, Value: bar.Value(metric)}
		}
		lines = append(lines, models.ChartSeries{
			Name:   sym,
			Type:   models.SeriesLine,
			Points: points,
		})
	}

	return models.ChartSpec{
		Kind:        models.ChartKindComparison,
		Title:       fmt.Sprintf("Stock Comparison (%s)", metric),
		Metric:      metric,
		XAxisTitle:  "Date",
		HoverMode:   hoverUnified,
		RangeSlider: false,
		Panels: []models.ChartPanel{{
			YAxisTitle:  yAxis,
			HeightRatio: 1,
			Series:      lines,
		}},
	}
}

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CompareMetric selects the bar field plotted in comparison charts
type CompareMetric string

const (
	MetricOpen   CompareMetric = "Open"
	MetricHigh   CompareMetric = "High"
	MetricLow    CompareMetric = "Low"
	MetricClose  CompareMetric = "Close"
	MetricVolume CompareMetric = "Volume"
)

// ParseCompareMetric accepts a metric name in any case; empty means Close
func ParseCompareMetric(s string) (CompareMetric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "close":
		return MetricClose, nil
	case "open":
		return MetricOpen, nil
	case "high":
		return MetricHigh, nil
	case "low":
		return MetricLow, nil
	case "volume":
		return MetricVolume, nil
	}
	return "", fmt.Errorf("unsupported comparison metric %q", s)
}

type ChartKind string

const (
	ChartKindSingle     ChartKind = "single"
	ChartKindComparison ChartKind = "comparison"
)

type SeriesType string

const (
	SeriesCandlestick SeriesType = "candlestick"
	SeriesBar         SeriesType = "bar"
	SeriesLine        SeriesType = "line"
)

// ChartSpec is a renderer-neutral description of a chart
type ChartSpec struct {
	Kind        ChartKind     `json:"kind"`
	Title       string        `json:"title"`
	Symbol      string        `json:"symbol,omitempty"`
	Metric      CompareMetric `json:"metric,omitempty"`
	XAxisTitle  string        `json:"x_axis_title"`
	SharedXAxis bool          `json:"shared_x_axis"`
	HoverMode   string        `json:"hover_mode"`
	RangeSlider bool          `json:"range_slider"`
	Panels      []ChartPanel  `json:"panels"`
}

// ChartPanel is a vertically stacked plot area
type ChartPanel struct {
	YAxisTitle  string        `json:"y_axis_title"`
	HeightRatio float64       `json:"height_ratio"`
	Series      []ChartSeries `json:"series"`
}

// ChartSeries holds candles for candlestick series, points otherwise
type ChartSeries struct {
	Name    string       `json:"name"`
	Type    SeriesType   `json:"type"`
	Candles []Candle     `json:"candles,omitempty"`
	Points  []ChartPoint `json:"points,omitempty"`
}

type Candle struct {
	Time  time.Time       `json:"time"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

type ChartPoint struct {
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}

package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period is the look-back window of a quote request
type Period string

const (
	Period1Day    Period = "1d"
	Period5Days   Period = "5d"
	Period1Month  Period = "1mo"
	Period3Months Period = "3mo"
	Period6Months Period = "6mo"
	Period1Year   Period = "1y"
	Period5Years  Period = "5y"
)

// Interval is the bar granularity of a quote request
type Interval string

const (
	Interval1Minute  Interval = "1m"
	Interval5Minutes Interval = "5m"
	Interval1Hour    Interval = "1h"
	Interval1Day     Interval = "1d"
	Interval1Week    Interval = "1wk"
)

// periodIntervals is the fixed period to bar-interval table
var periodIntervals = map[Period]Interval{
	Period1Day:    Interval1Minute,
	Period5Days:   Interval5Minutes,
	Period1Month:  Interval1Hour,
	Period3Months: Interval1Day,
	Period6Months: Interval1Day,
	Period1Year:   Interval1Day,
	Period5Years:  Interval1Week,
}

// Periods lists the supported periods in ascending length
func Periods() []Period {
	return []Period{Period1Day, Period5Days, Period1Month, Period3Months, Period6Months, Period1Year, Period5Years}
}

// ParsePeriod validates a period string
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodIntervals[p]; !ok {
		return "", fmt.Errorf("unsupported period %q", s)
	}
	return p, nil
}

// Interval returns the bar interval used for the period
func (p Period) Interval() Interval {
	return periodIntervals[p]
}

// Start returns the beginning of the period's window ending at now
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1Day:
		return now.AddDate(0, 0, -1)
	case Period5Days:
		return now.AddDate(0, 0, -5)
	case Period1Month:
		return now.AddDate(0, -1, 0)
	case Period3Months:
		return now.AddDate(0, -3, 0)
	case Period6Months:
		return now.AddDate(0, -6, 0)
	case Period1Year:
		return now.AddDate(-1, 0, 0)
	case Period5Years:
		return now.AddDate(-5, 0, 0)
	}
	return now
}

// Bar represents OHLCV price data for a time period
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Value returns the bar field selected by metric
func (b Bar) Value(metric CompareMetric) decimal.Decimal {
	switch metric {
	case MetricOpen:
		return b.Open
	case MetricHigh:
		return b.High
	case MetricLow:
		return b.Low
	case MetricVolume:
		return decimal.NewFromInt(b.Volume)
	default:
		return b.Close
	}
}

// SortBars orders bars by timestamp and collapses duplicate timestamps,
// keeping the later entry.
func SortBars(bars []Bar) []Bar {
	if len(bars) == 0 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// QuoteSeries holds the bars returned for one quote request
type QuoteSeries struct {
	Period    Period            `json:"period"`
	Interval  Interval          `json:"interval"`
	Bars      map[string][]Bar  `json:"bars"`
	Names     map[string]string `json:"names,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// NewQuoteSeries creates an empty series for period
func NewQuoteSeries(period Period) QuoteSeries {
	return QuoteSeries{
		Period:   period,
		Interval: period.Interval(),
		Bars:     make(map[string][]Bar),
		Names:    make(map[string]string),
	}
}

// For returns the bars for symbol, nil if none
func (s QuoteSeries) For(symbol string) []Bar {
	return s.Bars[symbol]
}

// Missing returns the symbols, in the given order, that have no bars
func (s QuoteSeries) Missing(symbols []string) []string {
	var missing []string
	for _, sym := range symbols {
		if len(s.Bars[sym]) == 0 {
			missing = append(missing, sym)
		}
	}
	return missing
}

// QuoteKey identifies a quote request for caching and in-flight sharing
func QuoteKey(symbols []string, period Period) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + string(period) + "|" + string(period.Interval())
}

// NewsArticle represents a news article about a stock
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsFeed is the news shown for one symbol. Unavailable carries the
// reason when the feed is empty because news could not be retrieved.
type NewsFeed struct {
	Symbol      string        `json:"symbol"`
	CompanyName string        `json:"company_name"`
	Articles    []NewsArticle `json:"articles"`
	Unavailable string        `json:"unavailable,omitempty"`
	FetchedAt   time.Time     `json:"fetched_at"`
}

// Available reports whether the feed came back from the provider
func (f NewsFeed) Available() bool {
	return f.Unavailable == ""
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.&=^-]*$`)

// ValidateSymbol validates an exchange ticker such as RELIANCE.NS or ^NSEI
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol %q too long (max 20 characters)", symbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}
	return nil
}

// NormalizeSymbols trims and upper-cases symbols, dropping blanks and
// duplicates while keeping the first-seen order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ParseSymbolList splits a comma-separated watchlist
func ParseSymbolList(s string) []string {
	return NormalizeSymbols(strings.Split(s, ","))
}

// SymbolBase strips the exchange suffix: RELIANCE.NS becomes RELIANCE
func SymbolBase(symbol string) string {
	base, _, _ := strings.Cut(symbol, ".")
	return base
}

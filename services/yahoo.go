package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/form"
	"github.com/shopspring/decimal"

	"stock-dashboard/models"
	"stock-dashboard/observability"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// sessionLookback widens the intraday windows so weekends and exchange
// holidays still yield the requested number of trading sessions.
var sessionLookback = map[models.Period]struct {
	window   time.Duration
	sessions int
}{
	models.Period1Day:  {window: 7 * 24 * time.Hour, sessions: 1},
	models.Period5Days: {window: 14 * 24 * time.Hour, sessions: 5},
}

// YahooService fetches chart data from the Yahoo Finance chart API
// through finance-go
type YahooService struct {
	httpClient *http.Client
	baseURL    string
	breakers   *CircuitBreakerRegistry
	retry      RetryConfig
	now        func() time.Time
}

// NewYahooService creates a YahooService. An empty baseURL uses the public endpoint.
func NewYahooService(baseURL string, timeout time.Duration) *YahooService {
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      DefaultRetryConfig,
		now:        time.Now,
	}
}

// WithBreakers sets the circuit breaker registry (nil means global)
func (s *YahooService) WithBreakers(r *CircuitBreakerRegistry) *YahooService {
	s.breakers = r
	return s
}

// WithRetryConfig overrides the retry policy
func (s *YahooService) WithRetryConfig(cfg RetryConfig) *YahooService {
	s.retry = cfg
	return s
}

func (s *YahooService) Name() string { return BreakerYahoo }

// GetBars returns the bars for symbol over period at the period's interval
func (s *YahooService) GetBars(ctx context.Context, symbol string, period models.Period) (ProviderBars, error) {
	ctx, span := observability.StartSpan(ctx, "yahoo.GetBars")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "get_chart")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerYahoo, "get_chart")

	var out ProviderBars
	out, err = ExecuteWithBreaker(ctx, s.breakers, BreakerYahoo, func() (ProviderBars, error) {
		var result ProviderBars
		retryErr := WithRetry(ctx, s.retry, func() error {
			var err error
			result, err = s.fetchChart(ctx, symbol, period)
			return err
		})
		return result, retryErr
	})
	if err != nil {
		errType := "request"
		if errors.Is(err, ErrNoData) {
			errType = "no_data"
		} else if errors.Is(err, ErrCircuitOpen) {
			errType = "circuit_open"
		}
		metrics.RecordExternalAPIError(BreakerYahoo, "get_chart", errType)
		return ProviderBars{}, err
	}
	return out, nil
}

// CompanyName reads the display name from the chart metadata
func (s *YahooService) CompanyName(ctx context.Context, symbol string) (string, error) {
	bars, err := s.fetchChart(ctx, symbol, models.Period1Day)
	if bars.CompanyName != "" {
		return bars.CompanyName, nil
	}
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s: no company name in chart metadata", symbol)
}

// fetchChart runs one chart request. The CompanyName of the result is set
// whenever the metadata carried one, even if err is not nil.
func (s *YahooService) fetchChart(ctx context.Context, symbol string, period models.Period) (out ProviderBars, err error) {
	end := s.now().UTC()
	start := period.Start(end)
	sessions := 0
	if lb, ok := sessionLookback[period]; ok {
		start = end.Add(-lb.window)
		sessions = lb.sessions
	}

	backend := &yahooBackend{client: s.httpClient, baseURL: s.baseURL, symbol: symbol}
	client := chart.Client{B: backend}

	defer func() { out.CompanyName = backend.companyName() }()

	iter := client.Get(&chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(period.Interval()),
	})

	var bars []models.Bar
	for iter.Next() {
		if bar, ok := chartBar(iter.Bar()); ok {
			bars = append(bars, bar)
		}
	}
	if err := iter.Err(); err != nil {
		if backend.err != nil {
			return ProviderBars{}, backend.err
		}
		return ProviderBars{}, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return ProviderBars{}, Permanent(fmt.Errorf("%s: %w", symbol, ErrNoData))
	}

	bars = models.SortBars(bars)
	if sessions > 0 {
		bars = lastSessions(bars, sessions)
	}
	return ProviderBars{Bars: bars}, nil
}

// chartBar converts a finance-go bar. Null prices decode to zero, so a bar
// without a close is skipped and missing open, high or low take the close.
func chartBar(b *finance.ChartBar) (models.Bar, bool) {
	if b == nil || !b.Close.IsPositive() {
		return models.Bar{}, false
	}
	closePrice := b.Close.Round(4)
	return models.Bar{
		Timestamp: time.Unix(int64(b.Timestamp), 0).UTC(),
		Open:      priceOr(b.Open, closePrice),
		High:      priceOr(b.High, closePrice),
		Low:       priceOr(b.Low, closePrice),
		Close:     closePrice,
		Volume:    int64(b.Volume),
	}, true
}

func priceOr(v, fallback decimal.Decimal) decimal.Decimal {
	if !v.IsPositive() {
		return fallback
	}
	return v.Round(4)
}

// lastSessions keeps the bars of the last n trading dates (UTC) of sorted bars
func lastSessions(bars []models.Bar, n int) []models.Bar {
	seen := 0
	var day string
	for i := len(bars) - 1; i >= 0; i-- {
		d := bars[i].Timestamp.Format(time.DateOnly)
		if d != day {
			if seen == n {
				return bars[i+1:]
			}
			day = d
			seen++
		}
	}
	return bars
}

// yahooChartEnvelope is the part of the /v8/finance/chart response read
// before finance-go decodes the bars: the error, result presence and the
// display names, which finance-go's chart metadata does not carry.
type yahooChartEnvelope struct {
	Chart struct {
		Result []struct {
			Meta struct {
				ShortName string `json:"shortName"`
				LongName  string `json:"longName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []json.RawMessage `json:"open"`
					High   []json.RawMessage `json:"high"`
					Low    []json.RawMessage `json:"low"`
					Close  []json.RawMessage `json:"close"`
					Volume []json.RawMessage `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooBackend implements finance.Backend for one chart request. It owns
// status classification so retries and no-data outcomes follow the
// provider conventions, and it keeps the names from the metadata.
type yahooBackend struct {
	client  *http.Client
	baseURL string
	symbol  string

	shortName string
	longName  string
	err       error
}

var _ finance.Backend = (*yahooBackend)(nil)

func (b *yahooBackend) companyName() string {
	if b.shortName != "" {
		return b.shortName
	}
	return b.longName
}

// Call performs the GET and decodes the body into v
func (b *yahooBackend) Call(path string, body *form.Values, ctx *context.Context, v interface{}) error {
	b.err = b.call(path, body, ctx, v)
	return b.err
}

func (b *yahooBackend) call(path string, body *form.Values, ctx *context.Context, v interface{}) error {
	reqCtx := context.Background()
	if ctx != nil && *ctx != nil {
		reqCtx = *ctx
	}

	u := b.baseURL + "/" + strings.TrimPrefix(path, "/")
	if body != nil {
		if q := body.Encode(); q != "" {
			u += "?" + q
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch %s: %w", b.symbol, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}

	var env yahooChartEnvelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusNotFound {
		return Permanent(fmt.Errorf("%s: %w", b.symbol, ErrNoData))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, b.symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return Permanent(fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, b.symbol))
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if e := env.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return Permanent(fmt.Errorf("%s: %w", b.symbol, ErrNoData))
		}
		return Permanent(fmt.Errorf("yahoo api error for %s: %s", b.symbol, e.Description))
	}
	if len(env.Chart.Result) == 0 {
		return Permanent(fmt.Errorf("%s: %w", b.symbol, ErrNoData))
	}

	result := env.Chart.Result[0]
	b.shortName = result.Meta.ShortName
	b.longName = result.Meta.LongName
	if len(result.Timestamp) == 0 {
		return Permanent(fmt.Errorf("%s: %w", b.symbol, ErrNoData))
	}
	// finance-go indexes every indicator array by timestamp position
	if q := result.Indicators.Quote; len(q) == 0 || !sameLen(len(result.Timestamp), q[0].Open, q[0].High, q[0].Low, q[0].Close, q[0].Volume) {
		return Permanent(fmt.Errorf("malformed chart response for %s: indicator arrays do not match timestamps", b.symbol))
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func sameLen(n int, arrays ...[]json.RawMessage) bool {
	for _, a := range arrays {
		if len(a) != n {
			return false
		}
	}
	return true
}

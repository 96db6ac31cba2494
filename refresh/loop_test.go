package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock-dashboard/models"
	"stock-dashboard/services"
)

type stubQuotes struct {
	mu      sync.Mutex
	calls   int
	bars    map[string][]models.Bar
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (s *stubQuotes) Fetch(ctx context.Context, symbols []string, period models.Period) (models.QuoteSeries, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	s.mu.Unlock()

	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	if err != nil {
		return models.QuoteSeries{}, err
	}

	series := models.NewQuoteSeries(period)
	for _, sym := range symbols {
		series.Bars[sym] = s.bars[sym]
		if series.Bars[sym] == nil {
			series.Bars[sym] = []models.Bar{}
		}
	}
	return series, nil
}

func (s *stubQuotes) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubQuotes) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubNews struct {
	mu          sync.Mutex
	calls       int
	unavailable string
}

func (s *stubNews) Fetch(ctx context.Context, symbol, hint string) models.NewsFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	feed := models.NewsFeed{Symbol: symbol, CompanyName: hint, Articles: []models.NewsArticle{}}
	if s.unavailable != "" {
		feed.Unavailable = s.unavailable
		return feed
	}
	feed.Articles = append(feed.Articles, models.NewsArticle{Title: symbol + " headline"})
	return feed
}

func (s *stubNews) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func closes(values ...string) []models.Bar {
	t0 := time.Date(2024, 6, 3, 3, 45, 0, 0, time.UTC)
	bars := make([]models.Bar, len(values))
	for i, v := range values {
		d := decimal.RequireFromString(v)
		bars[i] = models.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: d, High: d, Low: d, Close: d, Volume: 100}
	}
	return bars
}

func testSession(t *testing.T, compare bool, symbols ...string) Session {
	t.Helper()
	s, err := NewSession(models.Parameters{
		Symbols:     symbols,
		Period:      models.Period1Month,
		ShowVolume:  true,
		CompareMode: compare,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func defaultQuotes() *stubQuotes {
	return &stubQuotes{bars: map[string][]models.Bar{
		"RELIANCE.NS": closes("2900", "2950"),
		"TCS.NS":      closes("3800", "3838"),
	}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewSession_RejectsEmptySymbols(t *testing.T) {
	if _, err := NewSession(models.Parameters{Symbols: []string{" ", ""}, Period: models.Period1Month}); err == nil {
		t.Error("expected error for empty symbol list")
	}
}

func TestRunCycle_Ready(t *testing.T) {
	quotes := defaultQuotes()
	news := &stubNews{}
	session := testSession(t, false, "reliance.ns", "TCS.NS", "WIPRO.NS")
	session.Parameters.Alert = models.AlertRule{Symbol: "TCS.NS", Threshold: decimal.NewFromInt(3820)}

	l := NewLoop(session, quotes, news, Options{})
	l.runCycle(context.Background(), request{seq: 1, trigger: TriggerInitial}, session)

	state := l.State()
	if state.Status != models.StatusReady {
		t.Fatalf("Status = %s, LastError = %s", state.Status, state.LastError)
	}
	if state.Sequence != 1 || state.CycleID == "" {
		t.Errorf("Sequence = %d, CycleID = %q", state.Sequence, state.CycleID)
	}
	if len(state.Charts) != 2 {
		t.Errorf("expected one chart per symbol with data, got %d", len(state.Charts))
	}
	if len(state.Warnings) != 1 || state.Warnings[0] != "No data available for WIPRO.NS" {
		t.Errorf("Warnings = %v", state.Warnings)
	}
	if !state.AlertStatus.Triggered {
		t.Error("expected alert to trigger on 3800 -> 3838 crossing 3820")
	}
	if len(state.Summary) != 2 {
		t.Errorf("Summary rows = %d", len(state.Summary))
	}
	if news.Calls() != 3 {
		t.Errorf("news calls = %d, want one per symbol", news.Calls())
	}
	if got := state.News["RELIANCE.NS"].Articles; len(got) != 1 {
		t.Errorf("RELIANCE.NS news = %v", got)
	}
}

func TestRunCycle_CompareModeSkipsNews(t *testing.T) {
	quotes := defaultQuotes()
	news := &stubNews{}
	session := testSession(t, true, "RELIANCE.NS", "TCS.NS")

	l := NewLoop(session, quotes, news, Options{})
	l.runCycle(context.Background(), request{seq: 1}, session)

	state := l.State()
	if news.Calls() != 0 {
		t.Errorf("news calls = %d in compare mode", news.Calls())
	}
	if len(state.Charts) != 1 || state.Charts[0].Kind != models.ChartKindComparison {
		t.Errorf("expected single comparison chart, got %+v", state.Charts)
	}
}

func TestRunCycle_QuoteCacheTTL(t *testing.T) {
	clock := newFakeClock()
	quotes := defaultQuotes()
	session := testSession(t, true, "TCS.NS")

	l := NewLoop(session, quotes, nil, Options{QuoteTTL: 300 * time.Second})
	l.quoteCache.now = clock.Now

	l.runCycle(context.Background(), request{seq: 1}, session)
	clock.Advance(299 * time.Second)
	l.runCycle(context.Background(), request{seq: 2}, session)
	if quotes.Calls() != 1 {
		t.Fatalf("calls within TTL = %d, want 1", quotes.Calls())
	}

	clock.Advance(2 * time.Second)
	l.runCycle(context.Background(), request{seq: 3}, session)
	if quotes.Calls() != 2 {
		t.Errorf("calls after TTL = %d, want 2", quotes.Calls())
	}
}

func TestNewLoop_CacheTTLs(t *testing.T) {
	session := testSession(t, true, "TCS.NS")

	tests := []struct {
		name      string
		opts      Options
		wantQuote time.Duration
		wantNews  time.Duration
	}{
		{"zero takes defaults", Options{}, 300 * time.Second, 3600 * time.Second},
		{"explicit", Options{QuoteTTL: time.Minute, NewsTTL: 2 * time.Minute}, time.Minute, 2 * time.Minute},
		{"no cache", Options{QuoteTTL: NoCache, NewsTTL: NoCache}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoop(session, defaultQuotes(), nil, tt.opts)
			if l.quoteCache.ttl != tt.wantQuote {
				t.Errorf("quote TTL = %s, want %s", l.quoteCache.ttl, tt.wantQuote)
			}
			if l.newsCache.ttl != tt.wantNews {
				t.Errorf("news TTL = %s, want %s", l.newsCache.ttl, tt.wantNews)
			}
		})
	}
}

func TestRunCycle_DefaultQuoteCache(t *testing.T) {
	quotes := defaultQuotes()
	session := testSession(t, true, "TCS.NS")

	l := NewLoop(session, quotes, nil, Options{})
	l.runCycle(context.Background(), request{seq: 1}, session)
	l.runCycle(context.Background(), request{seq: 2}, session)
	if quotes.Calls() != 1 {
		t.Errorf("quote calls = %d, want 1 with the default cache", quotes.Calls())
	}
}

func TestRunCycle_UnavailableNewsNotCached(t *testing.T) {
	quotes := defaultQuotes()
	news := &stubNews{unavailable: services.NewsUnavailableNoCredential}
	session := testSession(t, false, "TCS.NS")

	l := NewLoop(session, quotes, news, Options{})
	l.runCycle(context.Background(), request{seq: 1}, session)
	l.runCycle(context.Background(), request{seq: 2}, session)

	if news.Calls() != 2 {
		t.Errorf("unavailable feed should be refetched, calls = %d", news.Calls())
	}
	if feed := l.State().News["TCS.NS"]; feed.Available() || feed.Articles == nil {
		t.Errorf("feed = %+v", feed)
	}

	news.mu.Lock()
	news.unavailable = ""
	news.mu.Unlock()
	l.runCycle(context.Background(), request{seq: 3}, session)
	l.runCycle(context.Background(), request{seq: 4}, session)
	if news.Calls() != 3 {
		t.Errorf("available feed should be cached, calls = %d", news.Calls())
	}

	l.InvalidateNews()
	l.runCycle(context.Background(), request{seq: 5}, session)
	if news.Calls() != 4 {
		t.Errorf("InvalidateNews should force a refetch, calls = %d", news.Calls())
	}
}

func TestRunCycle_ErrorKeepsPreviousData(t *testing.T) {
	quotes := defaultQuotes()
	session := testSession(t, true, "TCS.NS")

	l := NewLoop(session, quotes, nil, Options{QuoteTTL: NoCache})
	l.runCycle(context.Background(), request{seq: 1}, session)
	before := l.State()

	quotes.SetErr(&services.DataFetchError{Symbols: []string{"TCS.NS"}, Causes: []error{errors.New("boom")}})
	l.runCycle(context.Background(), request{seq: 2}, session)

	state := l.State()
	if state.Status != models.StatusError {
		t.Fatalf("Status = %s", state.Status)
	}
	if !strings.Contains(state.LastError, "TCS.NS") {
		t.Errorf("LastError = %q", state.LastError)
	}
	if state.Series != before.Series || len(state.Charts) != len(before.Charts) {
		t.Error("previous data should remain visible")
	}
	if !state.LastUpdated.Equal(before.LastUpdated) {
		t.Error("LastUpdated should refer to the last successful data")
	}

	quotes.SetErr(nil)
	l.runCycle(context.Background(), request{seq: 3}, session)
	if s := l.State(); s.Status != models.StatusReady || s.LastError != "" {
		t.Errorf("recovered state = %s %q", s.Status, s.LastError)
	}
}

func TestRunCycle_LastWriterByTriggerOrder(t *testing.T) {
	quotes := defaultQuotes()
	older := testSession(t, true, "RELIANCE.NS")
	newer := testSession(t, true, "TCS.NS")

	l := NewLoop(older, quotes, nil, Options{})
	l.runCycle(context.Background(), request{seq: 2}, newer)
	l.runCycle(context.Background(), request{seq: 1}, older)

	state := l.State()
	if state.Sequence != 2 {
		t.Errorf("Sequence = %d, want 2", state.Sequence)
	}
	if got := state.Parameters.Symbols; len(got) != 1 || got[0] != "TCS.NS" {
		t.Errorf("stale result overwrote newer state: %v", got)
	}
}

func TestRun_CoalescesTriggers(t *testing.T) {
	quotes := defaultQuotes()
	quotes.started = make(chan struct{}, 1)
	quotes.gate = make(chan struct{})
	session := testSession(t, true, "RELIANCE.NS")

	l := NewLoop(session, quotes, nil, Options{Interval: time.Hour, QuoteTTL: NoCache})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	<-quotes.started

	if _, err := l.SetParameters(models.Parameters{Symbols: []string{"TCS.NS"}, Period: models.Period1Month, CompareMode: true}); err != nil {
		t.Fatalf("SetParameters: %v", err)
	}
	l.Trigger(TriggerManual)
	last := l.Trigger(TriggerManual)

	close(quotes.gate)

	waitFor(t, func() bool { return l.State().Sequence == last })
	time.Sleep(50 * time.Millisecond)

	if quotes.Calls() != 2 {
		t.Errorf("fetch calls = %d, want 2 (initial + one coalesced)", quotes.Calls())
	}
	if got := l.State().Parameters.Symbols; got[0] != "TCS.NS" {
		t.Errorf("coalesced cycle should use latest parameters, got %v", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
}

func TestSetParameters_Invalid(t *testing.T) {
	l := NewLoop(testSession(t, true, "TCS.NS"), defaultQuotes(), nil, Options{})

	if _, err := l.SetParameters(models.Parameters{Period: models.Period1Month}); err == nil {
		t.Error("expected error for empty symbols")
	}
	if _, err := l.SetParameters(models.Parameters{Symbols: []string{"TCS.NS"}, Period: "2w"}); err == nil {
		t.Error("expected error for unknown period")
	}
	if got := l.Session().Parameters.Symbols[0]; got != "TCS.NS" {
		t.Errorf("invalid parameters must not replace the session, got %s", got)
	}
}

// Package refresh runs the dashboard's refresh cycle: one control flow fed
// by timer, parameter-change and manual triggers, with TTL caches in front
// of the quote and news clients.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"stock-dashboard/analysis"
	"stock-dashboard/charts"
	"stock-dashboard/models"
	"stock-dashboard/observability"
)

// Trigger names what caused a refresh cycle
type Trigger string

const (
	TriggerInitial    Trigger = "initial"
	TriggerTimer      Trigger = "timer"
	TriggerParameters Trigger = "parameters"
	TriggerManual     Trigger = "manual"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultQuoteTTL = 300 * time.Second
	DefaultNewsTTL  = 3600 * time.Second

	// NoCache disables a cache when passed as a TTL in Options.
	NoCache time.Duration = -1

	quoteCacheName = "quotes"
	newsCacheName  = "news"
)

// QuoteFetcher loads bars for a set of symbols
type QuoteFetcher interface {
	Fetch(ctx context.Context, symbols []string, period models.Period) (models.QuoteSeries, error)
}

// NewsFetcher loads headlines for one symbol. It never fails.
type NewsFetcher interface {
	Fetch(ctx context.Context, symbol, companyHint string) models.NewsFeed
}

// Options configures a Loop. Zero values take the defaults; a negative
// TTL such as NoCache turns that cache off.
type Options struct {
	Interval time.Duration
	QuoteTTL time.Duration
	NewsTTL  time.Duration
	Currency string
}

type request struct {
	seq     uint64
	trigger Trigger
}

// Loop owns the session, the caches and the published dashboard state.
// Cycles run one at a time on the goroutine calling Run; triggers that
// arrive while a cycle is running coalesce into one follow-up cycle.
type Loop struct {
	quotes     QuoteFetcher
	news       NewsFetcher
	charts     *charts.Builder
	quoteCache *Cache[models.QuoteSeries]
	newsCache  *Cache[models.NewsFeed]
	interval   time.Duration
	now        func() time.Time

	wake chan struct{}

	mu      sync.RWMutex
	session Session
	nextSeq uint64
	pending request
	started uint64
	state   models.DashboardState
}

// NewLoop creates a Loop for session. news may be nil, in which case no
// headlines are shown.
func NewLoop(session Session, quotes QuoteFetcher, news NewsFetcher, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	opts.QuoteTTL = resolveTTL(opts.QuoteTTL, DefaultQuoteTTL)
	opts.NewsTTL = resolveTTL(opts.NewsTTL, DefaultNewsTTL)

	l := &Loop{
		quotes:     quotes,
		news:       news,
		charts:     charts.NewBuilder(opts.Currency),
		quoteCache: NewCache[models.QuoteSeries](quoteCacheName, opts.QuoteTTL),
		newsCache:  NewCache[models.NewsFeed](newsCacheName, opts.NewsTTL),
		interval:   opts.Interval,
		now:        time.Now,
		wake:       make(chan struct{}, 1),
		session:    session,
		state: models.DashboardState{
			Status:     models.StatusIdle,
			Parameters: session.Parameters,
			News:       map[string]models.NewsFeed{},
		},
	}
	observability.GetMetrics().SetRefreshState(string(models.StatusIdle), models.RefreshStatuses())
	return l
}

func resolveTTL(ttl, def time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return def
	case ttl < 0:
		return 0
	}
	return ttl
}

// Run starts the timer and processes triggers until ctx is done. An
// initial cycle is triggered immediately.
func (l *Loop) Run(ctx context.Context) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", l.interval), func() {
		l.Trigger(TriggerTimer)
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh timer: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	observability.Info("Refresh loop started", "interval", l.interval.String())
	l.Trigger(TriggerInitial)

	for {
		select {
		case <-ctx.Done():
			observability.Info("Refresh loop stopped")
			return ctx.Err()
		case <-l.wake:
			req, session, ok := l.take()
			if !ok {
				continue
			}
			l.runCycle(ctx, req, session)
		}
	}
}

// Trigger requests a refresh cycle. It never blocks; a trigger arriving
// while one is already waiting is merged into it.
func (l *Loop) Trigger(reason Trigger) uint64 {
	l.mu.Lock()
	l.nextSeq++
	seq := l.nextSeq
	l.pending = request{seq: seq, trigger: reason}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
		observability.GetMetrics().RecordCoalescedTrigger()
		observability.Debug("Refresh trigger coalesced", "trigger", string(reason), "seq", seq)
	}
	return seq
}

// SetParameters replaces the session parameters and triggers an immediate
// cycle. The normalized parameters are returned.
func (l *Loop) SetParameters(params models.Parameters) (models.Parameters, error) {
	p, err := params.Normalize()
	if err != nil {
		return models.Parameters{}, err
	}

	l.mu.Lock()
	l.session.Parameters = p
	l.mu.Unlock()

	l.Trigger(TriggerParameters)
	return p, nil
}

// Session returns a copy of the current session
func (l *Loop) Session() Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// State returns the published dashboard state
func (l *Loop) State() models.DashboardState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// InvalidateNews drops cached headlines, used when the news credential
// changes.
func (l *Loop) InvalidateNews() {
	l.newsCache.Clear()
}

// take claims the latest pending trigger. ok is false when it was already
// claimed by an earlier wake-up.
func (l *Loop) take() (request, Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending.seq == 0 || l.pending.seq <= l.started {
		return request{}, Session{}, false
	}
	l.started = l.pending.seq
	l.state.Status = models.StatusFetching
	observability.GetMetrics().SetRefreshState(string(models.StatusFetching), models.RefreshStatuses())
	return l.pending, l.session, true
}

// runCycle fetches and derives a new state for session and publishes it
// unless a newer trigger has already been published.
func (l *Loop) runCycle(ctx context.Context, req request, session Session) {
	cycleID := uuid.New().String()
	ctx = observability.ContextWithCycleID(ctx, cycleID)
	ctx, span := observability.StartSpan(ctx, "refresh.Cycle")
	log := observability.WithContext(ctx)
	timer := observability.GetMetrics().NewTimer()

	log.Debug("Refresh cycle started", "trigger", string(req.trigger), "seq", req.seq)

	next, err := l.cycle(ctx, session)
	observability.EndSpan(span, err)

	if ctx.Err() != nil {
		log.Info("Refresh cycle abandoned", "seq", req.seq)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if req.seq <= l.state.Sequence {
		log.Debug("Discarding superseded refresh result", "seq", req.seq, "published", l.state.Sequence)
		return
	}

	if err != nil {
		prev := l.state
		prev.Status = models.StatusError
		prev.Parameters = session.Parameters
		prev.LastError = err.Error()
		prev.CycleID = cycleID
		prev.Sequence = req.seq
		l.state = prev
		log.Warn("Refresh cycle failed", "error", err)
	} else {
		next.CycleID = cycleID
		next.Sequence = req.seq
		l.state = next
		log.Info("Refresh cycle completed", "symbols", len(session.Parameters.Symbols), "warnings", len(next.Warnings))
	}

	timer.ObserveRefresh(string(req.trigger), string(l.state.Status))
	observability.GetMetrics().SetRefreshState(string(l.state.Status), models.RefreshStatuses())
}

// cycle computes a fresh Ready state. Quotes are always loaded before news.
func (l *Loop) cycle(ctx context.Context, session Session) (models.DashboardState, error) {
	params := session.Parameters

	l.quoteCache.Purge()
	l.newsCache.Purge()

	series, err := l.loadQuotes(ctx, session)
	if err != nil {
		return models.DashboardState{}, err
	}

	state := models.DashboardState{
		Status:      models.StatusReady,
		Parameters:  params,
		Series:      &series,
		Metrics:     analysis.Derive(series),
		News:        map[string]models.NewsFeed{},
		LastUpdated: l.now(),
	}

	for _, sym := range series.Missing(params.Symbols) {
		state.Warnings = append(state.Warnings, fmt.Sprintf("No data available for %s", sym))
		observability.GetMetrics().RecordDataGap(sym)
	}
	for _, sym := range params.Symbols {
		m, ok := state.Metrics[sym]
		if !ok {
			continue
		}
		var undefined *analysis.MetricUndefinedError
		if err := analysis.Undefined(m); errors.As(err, &undefined) {
			state.Warnings = append(state.Warnings, err.Error())
		}
	}

	state.Summary = analysis.SummaryRows(params.Symbols, state.Metrics, series.Names)

	state.AlertStatus = analysis.Triggered(session.AlertRule(), series)
	if state.AlertStatus.Triggered {
		observability.GetMetrics().RecordAlertTrigger(state.AlertStatus.Rule.Symbol)
		observability.WithContext(ctx).Info("Price alert triggered", "symbol", state.AlertStatus.Rule.Symbol, "message", state.AlertStatus.Message)
	}

	state.Charts = l.buildCharts(params, series)

	if session.ShowsNews() && l.news != nil {
		for _, sym := range params.Symbols {
			state.News[sym] = l.loadNews(ctx, sym, series.Names[sym])
		}
	}

	return state, nil
}

func (l *Loop) loadQuotes(ctx context.Context, session Session) (models.QuoteSeries, error) {
	key := session.QuoteKey()
	if series, ok := l.quoteCache.Get(key); ok {
		observability.WithContext(ctx).Debug("Quote cache hit", "key", key)
		return series, nil
	}

	series, err := l.quotes.Fetch(ctx, session.Parameters.Symbols, session.Parameters.Period)
	if err != nil {
		return models.QuoteSeries{}, err
	}
	l.quoteCache.Set(key, series)
	return series, nil
}

func (l *Loop) loadNews(ctx context.Context, symbol, companyHint string) models.NewsFeed {
	if feed, ok := l.newsCache.Get(symbol); ok {
		return feed
	}
	feed := l.news.Fetch(ctx, symbol, companyHint)
	if feed.Available() {
		l.newsCache.Set(symbol, feed)
	}
	return feed
}

func (l *Loop) buildCharts(params models.Parameters, series models.QuoteSeries) []models.ChartSpec {
	if params.CompareMode {
		return []models.ChartSpec{l.charts.BuildComparison(params.Symbols, series, params.CompareMetric)}
	}

	out := make([]models.ChartSpec, 0, len(params.Symbols))
	for _, sym := range params.Symbols {
		if spec := l.charts.BuildSingle(sym, series.For(sym), params.ShowVolume); spec != nil {
			out = append(out, *spec)
		}
	}
	return out
}

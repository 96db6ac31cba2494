// Package mocks provides HTTP mock servers for the market data and news
// APIs used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer provides configurable mock responses for all external APIs.
// Yahoo chart requests are served under /v8/finance/chart, NewsAPI under
// /v2 and Alpha Vantage under /query.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	// Response configurations
	yahooSymbols map[string]YahooSymbol
	newsArticles map[string][]NewsArticle // key: lowercased query term
	defaultNews  []NewsArticle
	newsAPIKey   string
	overviews    map[string]AlphaVantageOverview

	// Error injection
	yahooError        error
	newsAPIError      error
	alphaVantageError error

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Query  string
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		yahooSymbols: make(map[string]YahooSymbol),
		newsArticles: make(map[string][]NewsArticle),
		overviews:    make(map[string]AlphaVantageOverview),
		requestLog:   make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// YahooURL is the base URL to configure the Yahoo chart client with.
func (m *MockServer) YahooURL() string {
	return m.server.URL
}

// NewsAPIURL is the base URL to configure the NewsAPI client with.
func (m *MockServer) NewsAPIURL() string {
	return m.server.URL + "/v2"
}

// AlphaVantageURL is the base URL to configure the Alpha Vantage client with.
func (m *MockServer) AlphaVantageURL() string {
	return m.server.URL + "/query"
}

// NewsAPIKey is the only key the mock NewsAPI accepts.
func (m *MockServer) NewsAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newsAPIKey
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
	})
	m.mu.Unlock()

	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleYahooChart(w, r, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case path == "/v2/everything":
		m.handleNewsAPI(w, r)
	case path == "/query" && r.URL.Query().Get("function") == "OVERVIEW":
		m.handleAlphaVantage(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// CountRequests returns how many logged requests had a path starting with prefix.
func (m *MockServer) CountRequests(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, req := range m.requestLog {
		if strings.HasPrefix(req.Path, prefix) {
			n++
		}
	}
	return n
}

// SetYahooSymbol configures the chart served for symbol.
func (m *MockServer) SetYahooSymbol(symbol string, data YahooSymbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yahooSymbols[strings.ToUpper(symbol)] = data
}

// RemoveYahooSymbol makes the chart endpoint report symbol as not found.
func (m *MockServer) RemoveYahooSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.yahooSymbols, strings.ToUpper(symbol))
}

// SetYahooError makes every chart request fail with a 500.
func (m *MockServer) SetYahooError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yahooError = err
}

// SetNewsArticles configures articles returned when the query mentions term.
func (m *MockServer) SetNewsArticles(term string, articles []NewsArticle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsArticles[strings.ToLower(term)] = articles
}

// SetNewsAPIError makes every NewsAPI request fail with a 500.
func (m *MockServer) SetNewsAPIError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsAPIError = err
}

// SetAlphaVantageOverview configures the company overview for symbol.
func (m *MockServer) SetAlphaVantageOverview(symbol string, o AlphaVantageOverview) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overviews[strings.ToUpper(symbol)] = o
}

// SetAlphaVantageError makes every Alpha Vantage request fail with a 500.
func (m *MockServer) SetAlphaVantageError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphaVantageError = err
}

func (m *MockServer) setDefaults() {
	m.newsAPIKey = "e2e-news-key"

	m.yahooSymbols["RELIANCE.NS"] = YahooSymbol{
		LongName: "Reliance Industries Limited",
		Currency: "INR",
		Bars:     RisingBars(2900, 10, 5),
	}
	m.yahooSymbols["TCS.NS"] = YahooSymbol{
		LongName: "Tata Consultancy Services Limited",
		Currency: "INR",
		Bars:     RisingBars(3800, -5, 5),
	}
	m.yahooSymbols["INFY.NS"] = YahooSymbol{
		ShortName: "INFOSYS LTD",
		Currency:  "INR",
		Bars:      RisingBars(1500, 2, 5),
	}

	now := time.Now().UTC()
	m.defaultNews = []NewsArticle{
		{
			Source:      NewsSource{Name: "Economic Times"},
			Title:       "Markets close higher as IT stocks rally",
			Description: "Benchmark indices ended the session in the green.",
			URL:         "https://example.com/markets-close-higher",
			PublishedAt: now.Add(-2 * time.Hour).Format(time.RFC3339),
		},
	}
	m.newsArticles["reliance"] = []NewsArticle{
		{
			Source:      NewsSource{Name: "Mint"},
			Title:       "Reliance Industries reports record quarterly profit",
			Description: "Retail and telecom segments drove growth.",
			URL:         "https://example.com/reliance-profit",
			PublishedAt: now.Add(-1 * time.Hour).Format(time.RFC3339),
		},
		{
			Source:      NewsSource{Name: "Business Standard"},
			Title:       "Reliance Jio adds subscribers",
			URL:         "https://example.com/jio-subscribers",
			PublishedAt: now.Add(-26 * time.Hour).Format(time.RFC3339),
		},
	}
}

// RisingBars builds n daily bars starting at start and moving by step per bar.
func RisingBars(start, step float64, n int) []YahooBar {
	t0 := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -n)
	bars := make([]YahooBar, n)
	for i := range bars {
		price := start + step*float64(i)
		bars[i] = YahooBar{
			Timestamp: t0.AddDate(0, 0, i).Unix(),
			Open:      price,
			High:      price + 5,
			Low:       price - 5,
			Close:     price,
			Volume:    int64(100000 + 1000*i),
		}
	}
	return bars
}

func (m *MockServer) handleYahooChart(w http.ResponseWriter, r *http.Request, symbol string) {
	m.mu.RLock()
	err := m.yahooError
	data, ok := m.yahooSymbols[strings.ToUpper(symbol)]
	m.mu.RUnlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var resp yahooChartResponse
	if !ok {
		resp.Chart.Error = &yahooError{Code: "Not Found", Description: "No data found, symbol may be delisted"}
		writeJSON(w, http.StatusNotFound, resp)
		return
	}

	var result yahooResult
	result.Meta.Symbol = strings.ToUpper(symbol)
	result.Meta.Currency = data.Currency
	result.Meta.LongName = data.LongName
	result.Meta.ShortName = data.ShortName

	var q yahooQuote
	for _, b := range data.Bars {
		result.Timestamp = append(result.Timestamp, b.Timestamp)
		vol := float64(b.Volume)
		q.Open = append(q.Open, ptr(b.Open))
		q.High = append(q.High, ptr(b.High))
		q.Low = append(q.Low, ptr(b.Low))
		q.Close = append(q.Close, ptr(b.Close))
		q.Volume = append(q.Volume, &vol)
	}
	result.Indicators.Quote = []yahooQuote{q}
	resp.Chart.Result = []yahooResult{result}

	writeJSON(w, http.StatusOK, resp)
}

func (m *MockServer) handleNewsAPI(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	err := m.newsAPIError
	key := m.newsAPIKey
	byTerm := m.newsArticles
	fallback := m.defaultNews
	m.mu.RUnlock()

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, NewsAPIResponse{Status: "error", Code: "unexpectedError", Message: err.Error()})
		return
	}
	if r.Header.Get("X-Api-Key") != key {
		writeJSON(w, http.StatusUnauthorized, NewsAPIResponse{Status: "error", Code: "apiKeyInvalid", Message: "Your API key is invalid or incorrect."})
		return
	}

	query := strings.ToLower(r.URL.Query().Get("q"))
	articles := fallback
	for term, list := range byTerm {
		if strings.Contains(query, term) {
			articles = list
			break
		}
	}

	writeJSON(w, http.StatusOK, NewsAPIResponse{
		Status:       "ok",
		TotalResults: len(articles),
		Articles:     articles,
	})
}

func (m *MockServer) handleAlphaVantage(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	err := m.alphaVantageError
	overview, ok := m.overviews[strings.ToUpper(r.URL.Query().Get("symbol"))]
	m.mu.RUnlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"Error Message": fmt.Sprintf("Invalid API call for symbol %s", r.URL.Query().Get("symbol")),
		})
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ptr(f float64) *float64 {
	return &f
}

// Package e2e provides end-to-end testing infrastructure for the stock dashboard.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stock-dashboard/config"
	"stock-dashboard/e2e/mocks"
	"stock-dashboard/internal/api"
	"stock-dashboard/internal/app"
	"stock-dashboard/models"
)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	app        *app.App
	router     http.Handler
	config     *config.Config
}

// NewTestHarness creates a new test harness with all dependencies initialized.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	h := &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}

	return h
}

// Setup starts the mock upstreams and the application wired against them.
// configure, when non-nil, may adjust the config before the app is built.
func (h *TestHarness) Setup(configure func(*config.Config)) error {
	h.mockServer = mocks.NewMockServer()

	h.config = h.createTestConfig()
	if configure != nil {
		configure(h.config)
	}
	if err := h.config.Validate(); err != nil {
		return fmt.Errorf("invalid test config: %w", err)
	}

	breakers := app.NewBreakers(h.config)

	var err error
	h.app, err = app.Build(h.config, breakers)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	h.app.Startup(h.ctx)

	handler := api.NewHandler(h.app, h.config)
	h.router = api.NewRouter(handler, h.config)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.app.Shutdown(shutdownCtx); err != nil {
			h.t.Logf("app shutdown: %v", err)
		}
	}

	if h.cancel != nil {
		h.cancel()
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// DoRequest performs an HTTP request with a JSON body and returns the response.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	return h.do(method, path, body, "application/json", false)
}

// DoHTMXRequest performs an HTMX form request and returns the response.
func (h *TestHarness) DoHTMXRequest(method, path string, form string) *httptest.ResponseRecorder {
	return h.do(method, path, form, "application/x-www-form-urlencoded", true)
}

func (h *TestHarness) do(method, path, body, contentType string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// Dashboard fetches the current dashboard state through the JSON API.
func (h *TestHarness) Dashboard() models.DashboardState {
	h.t.Helper()

	w := h.DoRequest(http.MethodGet, "/api/dashboard", "")
	if w.Code != http.StatusOK {
		h.t.Fatalf("GET /api/dashboard: status %d: %s", w.Code, w.Body.String())
	}
	var state models.DashboardState
	if err := json.NewDecoder(w.Body).Decode(&state); err != nil {
		h.t.Fatalf("failed to decode dashboard state: %v", err)
	}
	return state
}

// WaitForState polls the dashboard until cond holds or timeout elapses.
func (h *TestHarness) WaitForState(timeout time.Duration, cond func(models.DashboardState) bool) models.DashboardState {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		state := h.Dashboard()
		if cond(state) {
			return state
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for dashboard state, last status %s (seq %d, error %q)",
				state.Status, state.Sequence, state.LastError)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// WaitForSequence waits until a published state has at least sequence seq
// and the loop is no longer fetching.
func (h *TestHarness) WaitForSequence(seq uint64) models.DashboardState {
	h.t.Helper()
	return h.WaitForState(10*time.Second, func(s models.DashboardState) bool {
		return s.Sequence >= seq && s.Status != models.StatusFetching && s.Status != models.StatusIdle
	})
}

func (h *TestHarness) createTestConfig() *config.Config {
	cfg := config.NewTestConfig()

	cfg.MarketData.Provider = config.ProviderYahoo
	cfg.MarketData.YahooBaseURL = h.mockServer.YahooURL()
	cfg.NewsAPI.BaseURL = h.mockServer.NewsAPIURL()
	cfg.NewsAPI.APIKey = h.mockServer.NewsAPIKey()
	cfg.AlphaVantage.BaseURL = h.mockServer.AlphaVantageURL()

	cfg.Dashboard.Symbols = []string{"RELIANCE.NS", "TCS.NS"}
	cfg.Dashboard.Period = string(models.Period1Month)
	cfg.Dashboard.CompareMode = false

	// The timer must not fire during a test; refreshes are driven explicitly.
	cfg.Refresh.Interval = time.Hour

	return cfg
}

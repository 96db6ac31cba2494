//go:build e2e
// +build e2e

package scenarios

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"stock-dashboard/config"
	"stock-dashboard/e2e"
	"stock-dashboard/models"
)

func setup(t *testing.T, configure func(*config.Config)) *e2e.TestHarness {
	t.Helper()

	harness := e2e.NewTestHarness(t)
	if err := harness.Setup(configure); err != nil {
		t.Fatalf("failed to setup test harness: %v", err)
	}
	t.Cleanup(harness.Teardown)
	return harness
}

func refresh(t *testing.T, h *e2e.TestHarness) uint64 {
	t.Helper()

	resp := h.DoRequest(http.MethodPost, "/api/refresh", "")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("refresh: expected 202, got %d", resp.Code)
	}
	var body struct {
		Sequence uint64 `json:"sequence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode refresh response: %v", err)
	}
	return body.Sequence
}

func TestDashboard_InitialLoad(t *testing.T) {
	h := setup(t, nil)

	state := h.WaitForSequence(1)

	if state.Status != models.StatusReady {
		t.Fatalf("expected ready, got %s (%s)", state.Status, state.LastError)
	}

	t.Run("summary rows in watchlist order", func(t *testing.T) {
		if len(state.Summary) != 2 {
			t.Fatalf("expected 2 summary rows, got %d", len(state.Summary))
		}
		if state.Summary[0].Symbol != "RELIANCE.NS" || !state.Summary[0].TrendUp {
			t.Errorf("unexpected first row: %+v", state.Summary[0])
		}
		if state.Summary[1].Symbol != "TCS.NS" || state.Summary[1].TrendUp {
			t.Errorf("unexpected second row: %+v", state.Summary[1])
		}
		if state.Summary[0].CompanyName != "Reliance Industries Limited" {
			t.Errorf("company name = %q", state.Summary[0].CompanyName)
		}
	})

	t.Run("one chart per symbol", func(t *testing.T) {
		if len(state.Charts) != 2 {
			t.Fatalf("expected 2 charts, got %d", len(state.Charts))
		}
		for _, c := range state.Charts {
			if c.Kind != models.ChartKindSingle {
				t.Errorf("expected single chart, got %s", c.Kind)
			}
		}
	})

	t.Run("news per symbol", func(t *testing.T) {
		feed, ok := state.News["RELIANCE.NS"]
		if !ok || !feed.Available() {
			t.Fatalf("expected reliance news, got %+v", feed)
		}
		if len(feed.Articles) != 2 || !strings.Contains(feed.Articles[0].Title, "record quarterly profit") {
			t.Errorf("articles = %+v", feed.Articles)
		}
		if len(state.News["TCS.NS"].Articles) != 1 {
			t.Errorf("expected fallback article for TCS, got %+v", state.News["TCS.NS"])
		}
	})
}

func TestDashboard_ParameterChangeRefreshesImmediately(t *testing.T) {
	h := setup(t, nil)
	first := h.WaitForSequence(1)

	resp := h.DoRequest(http.MethodPut, "/api/parameters",
		`{"symbols":["INFY.NS","TCS.NS"],"compare_mode":true,"compare_metric":"Volume"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	state := h.WaitForSequence(first.Sequence + 1)

	if !state.Parameters.CompareMode || state.Parameters.Symbols[0] != "INFY.NS" {
		t.Errorf("parameters not applied: %+v", state.Parameters)
	}
	if len(state.Charts) != 1 || state.Charts[0].Kind != models.ChartKindComparison {
		t.Fatalf("expected one comparison chart, got %+v", state.Charts)
	}
	if len(state.News) != 0 {
		t.Errorf("compare mode should not load news, got %d feeds", len(state.News))
	}
}

func TestDashboard_QuoteCacheServesRepeatRefreshes(t *testing.T) {
	h := setup(t, nil)
	first := h.WaitForSequence(1)

	charts := h.MockServer().CountRequests("/v8/finance/chart/")
	news := h.MockServer().CountRequests("/v2/everything")

	h.WaitForSequence(refresh(t, h))

	if got := h.MockServer().CountRequests("/v8/finance/chart/"); got != charts {
		t.Errorf("expected cached quotes, chart requests went from %d to %d", charts, got)
	}
	if got := h.MockServer().CountRequests("/v2/everything"); got != news {
		t.Errorf("expected cached news, news requests went from %d to %d", news, got)
	}
	if first.Sequence == 0 {
		t.Error("initial cycle should have a sequence")
	}
}

func TestDashboard_UpstreamFailureKeepsLastData(t *testing.T) {
	h := setup(t, func(cfg *config.Config) {
		cfg.Refresh.QuoteCacheTTL = 0
	})
	good := h.WaitForSequence(1)
	if good.Status != models.StatusReady {
		t.Fatalf("expected ready, got %s", good.Status)
	}

	h.MockServer().SetYahooError(errors.New("upstream down"))
	state := h.WaitForSequence(refresh(t, h))

	if state.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", state.Status)
	}
	if state.LastError == "" {
		t.Error("expected last error to be set")
	}
	if len(state.Summary) != len(good.Summary) || !state.LastUpdated.Equal(good.LastUpdated) {
		t.Errorf("previous data should be kept")
	}

	health := h.DoRequest(http.MethodGet, "/api/health", "")
	var body map[string]interface{}
	json.NewDecoder(health.Body).Decode(&body)
	if body["status"] != "degraded" {
		t.Errorf("expected degraded health, got %v", body["status"])
	}
}

func TestDashboard_MissingSymbolIsAPartialGap(t *testing.T) {
	h := setup(t, func(cfg *config.Config) {
		cfg.Dashboard.Symbols = []string{"RELIANCE.NS", "NOSUCH.NS"}
	})

	state := h.WaitForSequence(1)

	if state.Status != models.StatusReady {
		t.Fatalf("expected ready, got %s (%s)", state.Status, state.LastError)
	}
	found := false
	for _, w := range state.Warnings {
		if w == "No data available for NOSUCH.NS" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected data gap warning, got %v", state.Warnings)
	}
	if len(state.Charts) != 1 {
		t.Errorf("expected chart only for RELIANCE.NS, got %d", len(state.Charts))
	}
}

func TestDashboard_AlertTriggersOnCrossing(t *testing.T) {
	h := setup(t, func(cfg *config.Config) {
		// RELIANCE closes at 2930 then 2940.
		cfg.Dashboard.AlertSymbol = "RELIANCE.NS"
		cfg.Dashboard.AlertThreshold = "2935"
	})

	state := h.WaitForSequence(1)

	if !state.AlertStatus.Active || !state.AlertStatus.Triggered {
		t.Fatalf("expected triggered alert, got %+v", state.AlertStatus)
	}
	if !strings.Contains(state.AlertStatus.Message, "RELIANCE.NS") {
		t.Errorf("message = %q", state.AlertStatus.Message)
	}
}

func TestDashboard_NewsKeyLifecycle(t *testing.T) {
	h := setup(t, func(cfg *config.Config) {
		cfg.NewsAPI.APIKey = ""
	})

	state := h.WaitForSequence(1)
	if feed := state.News["RELIANCE.NS"]; feed.Available() || len(feed.Articles) != 0 {
		t.Fatalf("expected unavailable news without a key, got %+v", feed)
	}

	resp := h.DoRequest(http.MethodPost, "/api/settings/newsapi/test", `{"api_key":"wrong"}`)
	var result struct {
		Valid bool `json:"valid"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Valid {
		t.Error("wrong key should not validate")
	}

	resp = h.DoRequest(http.MethodPut, "/api/settings/newsapi", `{"api_key":"`+h.MockServer().NewsAPIKey()+`"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("save key: expected 200, got %d", resp.Code)
	}

	state = h.WaitForState(10*time.Second, func(s models.DashboardState) bool {
		return s.Sequence > state.Sequence && s.Status == models.StatusReady && s.News["RELIANCE.NS"].Available()
	})
	if len(state.News["RELIANCE.NS"].Articles) == 0 {
		t.Error("expected articles after key was saved")
	}
}

func TestDashboard_HTMXFlow(t *testing.T) {
	h := setup(t, nil)
	h.WaitForSequence(1)

	t.Run("index page", func(t *testing.T) {
		resp := h.DoRequest(http.MethodGet, "/", "")
		body := resp.Body.String()
		if !strings.Contains(body, "Indian Stock Dashboard") || !strings.Contains(body, "RELIANCE.NS") {
			t.Errorf("unexpected index page")
		}
	})

	t.Run("form submission returns partial", func(t *testing.T) {
		resp := h.DoHTMXRequest(http.MethodPut, "/api/parameters", "symbols=TCS.NS&period=5d")
		if !strings.Contains(resp.Body.String(), `id="dashboard"`) {
			t.Errorf("expected dashboard partial, got %.120s", resp.Body.String())
		}
	})

	t.Run("invalid form shows inline error", func(t *testing.T) {
		resp := h.DoHTMXRequest(http.MethodPut, "/api/parameters", "symbols=&period=5d")
		if !strings.Contains(resp.Body.String(), "enter at least one stock symbol") {
			t.Errorf("expected inline error, got %s", resp.Body.String())
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stock-dashboard/models"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DASHBOARD_CONFIG",
	"HTTP_ADDR",
	"CORS_ALLOWED_ORIGINS",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"TRACING_ENABLED",
	"MARKET_DATA_PROVIDER",
	"YAHOO_BASE_URL",
	"HTTP_TIMEOUT",
	"ALPACA_API_KEY",
	"ALPACA_API_SECRET",
	"ALPHA_VANTAGE_API_KEY",
	"ALPHA_VANTAGE_BASE_URL",
	"NEWSAPI_KEY",
	"NEWSAPI_BASE_URL",
	"DASHBOARD_SYMBOLS",
	"DASHBOARD_PERIOD",
	"DASHBOARD_SHOW_VOLUME",
	"DASHBOARD_COMPARE_MODE",
	"DASHBOARD_COMPARE_METRIC",
	"DASHBOARD_ALERT_SYMBOL",
	"DASHBOARD_ALERT_THRESHOLD",
	"CURRENCY_SYMBOL",
	"REFRESH_INTERVAL",
	"QUOTE_CACHE_TTL",
	"NEWS_CACHE_TTL",
	"BREAKER_MIN_REQUESTS",
	"BREAKER_FAILURE_RATIO",
	"BREAKER_OPEN_TIMEOUT",
}

func withCleanEnv(t *testing.T) {
	t.Helper()
	saved := saveEnv(t, allEnvKeys)
	t.Cleanup(func() { restoreEnv(t, saved) })
	clearEnv(t, allEnvKeys)
}

func TestLoad_Defaults(t *testing.T) {
	withCleanEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected HTTP.Addr=:8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.MarketData.Provider != ProviderYahoo {
		t.Errorf("expected provider yahoo, got %s", cfg.MarketData.Provider)
	}
	if cfg.Refresh.Interval != 5*time.Minute {
		t.Errorf("expected Interval=5m, got %s", cfg.Refresh.Interval)
	}
	if cfg.Refresh.QuoteCacheTTL != 300*time.Second || cfg.Refresh.NewsCacheTTL != 3600*time.Second {
		t.Errorf("unexpected cache TTLs: %s / %s", cfg.Refresh.QuoteCacheTTL, cfg.Refresh.NewsCacheTTL)
	}
	if cfg.Dashboard.CurrencySymbol != "₹" {
		t.Errorf("expected rupee currency symbol, got %s", cfg.Dashboard.CurrencySymbol)
	}
	if cfg.HasNewsAPI() || cfg.HasAlpaca() || cfg.HasAlphaVantage() {
		t.Error("no credentials should be configured by default")
	}

	params, err := cfg.DashboardParameters()
	if err != nil {
		t.Fatalf("DashboardParameters: %v", err)
	}
	if len(params.Symbols) != 2 || params.Symbols[0] != "RELIANCE.NS" || params.Symbols[1] != "TCS.NS" {
		t.Errorf("default symbols = %v", params.Symbols)
	}
	if params.Period != models.Period1Month || !params.ShowVolume || !params.CompareMode {
		t.Errorf("default parameters = %+v", params)
	}
	if params.Alert.Active() {
		t.Error("no alert should be active by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	withCleanEnv(t)

	os.Setenv("HTTP_ADDR", ":9000")
	os.Setenv("DASHBOARD_SYMBOLS", "infy.ns, wipro.ns,INFY.NS")
	os.Setenv("DASHBOARD_PERIOD", "5d")
	os.Setenv("DASHBOARD_COMPARE_MODE", "false")
	os.Setenv("DASHBOARD_ALERT_SYMBOL", "infy.ns")
	os.Setenv("DASHBOARD_ALERT_THRESHOLD", "1500.5")
	os.Setenv("REFRESH_INTERVAL", "90")
	os.Setenv("NEWS_CACHE_TTL", "30m")
	os.Setenv("NEWSAPI_KEY", "news-key")
	os.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr = %s", cfg.HTTP.Addr)
	}
	if cfg.Refresh.Interval != 90*time.Second {
		t.Errorf("bare seconds should parse, got %s", cfg.Refresh.Interval)
	}
	if cfg.Refresh.NewsCacheTTL != 30*time.Minute {
		t.Errorf("NewsCacheTTL = %s", cfg.Refresh.NewsCacheTTL)
	}
	if !cfg.HasNewsAPI() || !cfg.Tracing.Enabled {
		t.Error("expected NewsAPI key and tracing from env")
	}

	params, err := cfg.DashboardParameters()
	if err != nil {
		t.Fatalf("DashboardParameters: %v", err)
	}
	if len(params.Symbols) != 2 || params.Symbols[0] != "INFY.NS" {
		t.Errorf("symbols = %v", params.Symbols)
	}
	if params.Period != models.Period5Days || params.CompareMode {
		t.Errorf("parameters = %+v", params)
	}
	if !params.Alert.Active() || params.Alert.Symbol != "INFY.NS" || params.Alert.Threshold.String() != "1500.5" {
		t.Errorf("alert = %+v", params.Alert)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	withCleanEnv(t)

	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	content := `
dashboard:
  symbols: [HDFCBANK.NS, ICICIBANK.NS, SBIN.NS]
  period: 6mo
  compare_metric: high
refresh:
  interval: 10m
market_data:
  yahoo_base_url: http://localhost:1234
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("DASHBOARD_CONFIG", path)
	os.Setenv("DASHBOARD_PERIOD", "1y")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Dashboard.Symbols) != 3 {
		t.Errorf("symbols from file = %v", cfg.Dashboard.Symbols)
	}
	if cfg.Dashboard.Period != "1y" {
		t.Errorf("env should override file, got period %s", cfg.Dashboard.Period)
	}
	if cfg.Refresh.Interval != 10*time.Minute {
		t.Errorf("Interval = %s", cfg.Refresh.Interval)
	}
	if cfg.MarketData.YahooBaseURL != "http://localhost:1234" {
		t.Errorf("YahooBaseURL = %s", cfg.MarketData.YahooBaseURL)
	}
	if !cfg.Dashboard.ShowVolume {
		t.Error("unset file keys should keep their defaults")
	}

	params, err := cfg.DashboardParameters()
	if err != nil {
		t.Fatal(err)
	}
	if params.CompareMetric != models.MetricHigh {
		t.Errorf("CompareMetric = %s", params.CompareMetric)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected defaults, got %+v", cfg.HTTP)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("dashboard: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.MarketData.Provider = "bloomberg" }, true},
		{"alpaca without keys", func(c *Config) { c.MarketData.Provider = ProviderAlpaca }, true},
		{"alpaca with keys", func(c *Config) {
			c.MarketData.Provider = ProviderAlpaca
			c.Alpaca.APIKey = "k"
			c.Alpaca.APISecret = "s"
		}, false},
		{"bad period", func(c *Config) { c.Dashboard.Period = "2w" }, true},
		{"no symbols", func(c *Config) { c.Dashboard.Symbols = nil }, true},
		{"bad metric", func(c *Config) { c.Dashboard.CompareMetric = "vwap" }, true},
		{"bad threshold", func(c *Config) { c.Dashboard.AlertThreshold = "lots" }, true},
		{"zero interval", func(c *Config) { c.Refresh.Interval = 0 }, true},
		{"negative ttl", func(c *Config) { c.Refresh.QuoteCacheTTL = -time.Second }, true},
		{"zero ttl disables cache", func(c *Config) { c.Refresh.NewsCacheTTL = 0 }, false},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"zero breaker min requests", func(c *Config) { c.Breaker.MinRequests = 0 }, true},
		{"breaker ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	withCleanEnv(t)

	os.Setenv("REFRESH_INTERVAL", "not-a-duration")
	if got := getEnvDuration("REFRESH_INTERVAL", time.Minute); got != time.Minute {
		t.Errorf("invalid value should fall back to default, got %s", got)
	}
	os.Setenv("REFRESH_INTERVAL", "-5s")
	if got := getEnvDuration("REFRESH_INTERVAL", time.Minute); got != time.Minute {
		t.Errorf("negative value should fall back to default, got %s", got)
	}
}

func TestLoad_BreakerEnv(t *testing.T) {
	withCleanEnv(t)

	os.Setenv("BREAKER_MIN_REQUESTS", "10")
	os.Setenv("BREAKER_FAILURE_RATIO", "0.8")
	os.Setenv("BREAKER_OPEN_TIMEOUT", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Breaker.MinRequests != 10 || cfg.Breaker.FailureRatio != 0.8 || cfg.Breaker.OpenTimeout != 2*time.Minute {
		t.Errorf("Breaker = %+v", cfg.Breaker)
	}

	os.Setenv("BREAKER_FAILURE_RATIO", "2")
	if got := getEnvFloat("BREAKER_FAILURE_RATIO", 0.5); got != 0.5 {
		t.Errorf("out of range ratio should fall back to default, got %g", got)
	}
}

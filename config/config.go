package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stock-dashboard/models"
)

const (
	ProviderYahoo  = "yahoo"
	ProviderAlpaca = "alpaca"
)

// Config holds all application configuration
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig `yaml:"http"`

	// Logging and tracing
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`

	// Market data and news providers
	MarketData   MarketDataConfig   `yaml:"market_data"`
	Alpaca       AlpacaConfig       `yaml:"-"`
	AlphaVantage AlphaVantageConfig `yaml:"alpha_vantage"`
	NewsAPI      NewsAPIConfig      `yaml:"newsapi"`

	// Provider circuit breakers
	Breaker BreakerConfig `yaml:"breaker"`

	// Dashboard defaults and refresh timing
	Dashboard DashboardConfig `yaml:"dashboard"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string `yaml:"addr"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MarketDataConfig selects and configures the bar provider
type MarketDataConfig struct {
	Provider     string        `yaml:"provider"` // yahoo or alpaca
	YahooBaseURL string        `yaml:"yahoo_base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AlpacaConfig holds Alpaca API credentials. They are only read from the
// environment.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
}

// NewsAPIConfig holds NewsAPI configuration
type NewsAPIConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
}

// BreakerConfig is the trip policy shared by all provider circuit breakers
type BreakerConfig struct {
	MinRequests  int           `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
}

// DashboardConfig holds the initial dashboard parameters
type DashboardConfig struct {
	Symbols        []string `yaml:"symbols"`
	Period         string   `yaml:"period"`
	ShowVolume     bool     `yaml:"show_volume"`
	CompareMode    bool     `yaml:"compare_mode"`
	CompareMetric  string   `yaml:"compare_metric"`
	AlertSymbol    string   `yaml:"alert_symbol"`
	AlertThreshold string   `yaml:"alert_threshold"`
	CurrencySymbol string   `yaml:"currency_symbol"`
}

// RefreshConfig holds the refresh timer and cache lifetimes. A cache TTL
// of 0 turns that cache off.
type RefreshConfig struct {
	Interval      time.Duration `yaml:"interval"`
	QuoteCacheTTL time.Duration `yaml:"quote_cache_ttl"`
	NewsCacheTTL  time.Duration `yaml:"news_cache_ttl"`
}

// Defaults returns the built-in configuration before any file or
// environment override
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:               ":8080",
			CORSAllowedOrigins: "*",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		MarketData: MarketDataConfig{
			Provider:     ProviderYahoo,
			YahooBaseURL: "https://query1.finance.yahoo.com",
			Timeout:      15 * time.Second,
		},
		AlphaVantage: AlphaVantageConfig{
			BaseURL: "https://www.alphavantage.co/query",
		},
		NewsAPI: NewsAPIConfig{
			BaseURL: "https://newsapi.org/v2",
		},
		Dashboard: DashboardConfig{
			Symbols:        []string{"RELIANCE.NS", "TCS.NS"},
			Period:         string(models.Period1Month),
			ShowVolume:     true,
			CompareMode:    true,
			CompareMetric:  string(models.MetricClose),
			CurrencySymbol: "₹",
		},
		Breaker: BreakerConfig{
			MinRequests:  5,
			FailureRatio: 0.5,
			OpenTimeout:  30 * time.Second,
		},
		Refresh: RefreshConfig{
			Interval:      5 * time.Minute,
			QuoteCacheTTL: 300 * time.Second,
			NewsCacheTTL:  3600 * time.Second,
		},
	}
}

// Load loads configuration from the optional YAML file named by
// DASHBOARD_CONFIG, then applies environment variable overrides
func Load() (*Config, error) {
	cfg, err := LoadFile(os.Getenv("DASHBOARD_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile returns the defaults overlaid with the YAML file at path. An
// empty path or a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.CORSAllowedOrigins = getEnvString("CORS_ALLOWED_ORIGINS", c.HTTP.CORSAllowedOrigins)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvString("LOG_FORMAT", c.Log.Format)
	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)

	c.MarketData.Provider = strings.ToLower(getEnvString("MARKET_DATA_PROVIDER", c.MarketData.Provider))
	c.MarketData.YahooBaseURL = getEnvString("YAHOO_BASE_URL", c.MarketData.YahooBaseURL)
	c.MarketData.Timeout = getEnvDuration("HTTP_TIMEOUT", c.MarketData.Timeout)

	c.Alpaca.APIKey = os.Getenv("ALPACA_API_KEY")
	c.Alpaca.APISecret = os.Getenv("ALPACA_API_SECRET")

	c.AlphaVantage.APIKey = os.Getenv("ALPHA_VANTAGE_API_KEY")
	c.AlphaVantage.BaseURL = getEnvString("ALPHA_VANTAGE_BASE_URL", c.AlphaVantage.BaseURL)

	c.NewsAPI.APIKey = os.Getenv("NEWSAPI_KEY")
	c.NewsAPI.BaseURL = getEnvString("NEWSAPI_BASE_URL", c.NewsAPI.BaseURL)

	c.Breaker.MinRequests = getEnvInt("BREAKER_MIN_REQUESTS", c.Breaker.MinRequests)
	c.Breaker.FailureRatio = getEnvFloat("BREAKER_FAILURE_RATIO", c.Breaker.FailureRatio)
	c.Breaker.OpenTimeout = getEnvDuration("BREAKER_OPEN_TIMEOUT", c.Breaker.OpenTimeout)

	if v := os.Getenv("DASHBOARD_SYMBOLS"); v != "" {
		c.Dashboard.Symbols = models.ParseSymbolList(v)
	}
	c.Dashboard.Period = getEnvString("DASHBOARD_PERIOD", c.Dashboard.Period)
	c.Dashboard.ShowVolume = getEnvBool("DASHBOARD_SHOW_VOLUME", c.Dashboard.ShowVolume)
	c.Dashboard.CompareMode = getEnvBool("DASHBOARD_COMPARE_MODE", c.Dashboard.CompareMode)
	c.Dashboard.CompareMetric = getEnvString("DASHBOARD_COMPARE_METRIC", c.Dashboard.CompareMetric)
	c.Dashboard.AlertSymbol = getEnvString("DASHBOARD_ALERT_SYMBOL", c.Dashboard.AlertSymbol)
	c.Dashboard.AlertThreshold = getEnvString("DASHBOARD_ALERT_THRESHOLD", c.Dashboard.AlertThreshold)
	c.Dashboard.CurrencySymbol = getEnvString("CURRENCY_SYMBOL", c.Dashboard.CurrencySymbol)

	c.Refresh.Interval = getEnvDuration("REFRESH_INTERVAL", c.Refresh.Interval)
	c.Refresh.QuoteCacheTTL = getEnvDuration("QUOTE_CACHE_TTL", c.Refresh.QuoteCacheTTL)
	c.Refresh.NewsCacheTTL = getEnvDuration("NEWS_CACHE_TTL", c.Refresh.NewsCacheTTL)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.MarketData.Provider {
	case ProviderYahoo:
	case ProviderAlpaca:
		if !c.HasAlpaca() {
			return fmt.Errorf("MARKET_DATA_PROVIDER=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
	default:
		return fmt.Errorf("MARKET_DATA_PROVIDER must be %q or %q, got %q", ProviderYahoo, ProviderAlpaca, c.MarketData.Provider)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	if _, err := c.DashboardParameters(); err != nil {
		return fmt.Errorf("invalid dashboard defaults: %w", err)
	}

	// Validate positive durations
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.QuoteCacheTTL < 0 {
		return fmt.Errorf("QUOTE_CACHE_TTL must not be negative, got %s", c.Refresh.QuoteCacheTTL)
	}
	if c.Refresh.NewsCacheTTL < 0 {
		return fmt.Errorf("NEWS_CACHE_TTL must not be negative, got %s", c.Refresh.NewsCacheTTL)
	}
	if c.Breaker.MinRequests <= 0 {
		return fmt.Errorf("BREAKER_MIN_REQUESTS must be positive, got %d", c.Breaker.MinRequests)
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1], got %g", c.Breaker.FailureRatio)
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("BREAKER_OPEN_TIMEOUT must be positive, got %s", c.Breaker.OpenTimeout)
	}
	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.MarketData.Timeout)
	}

	return nil
}

// DashboardParameters returns the configured initial dashboard parameters,
// normalized
func (c *Config) DashboardParameters() (models.Parameters, error) {
	params := models.Parameters{
		Symbols:       c.Dashboard.Symbols,
		Period:        models.Period(c.Dashboard.Period),
		ShowVolume:    c.Dashboard.ShowVolume,
		CompareMode:   c.Dashboard.CompareMode,
		CompareMetric: models.CompareMetric(c.Dashboard.CompareMetric),
	}
	if c.Dashboard.AlertThreshold != "" {
		threshold, err := decimal.NewFromString(c.Dashboard.AlertThreshold)
		if err != nil {
			return models.Parameters{}, fmt.Errorf("alert threshold %q: %w", c.Dashboard.AlertThreshold, err)
		}
		params.Alert = models.AlertRule{Symbol: c.Dashboard.AlertSymbol, Threshold: threshold}
	}
	return params.Normalize()
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasNewsAPI returns true if a NewsAPI key was supplied through the
// environment
func (c *Config) HasNewsAPI() bool {
	return c.NewsAPI.APIKey != ""
}

// IsProduction reports whether logs should use the JSON handler
func (c *Config) IsProduction() bool {
	return c.Log.Format == "json"
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed > 0 && parsed <= 1 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5m") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(val); err == nil && parsed >= 0 {
		return parsed
	}
	if secs, err := strconv.Atoi(val); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	cfg := Defaults()
	cfg.Log.Format = "text"
	cfg.Log.Level = "debug"
	cfg.MarketData.Timeout = 5 * time.Second
	return cfg
}

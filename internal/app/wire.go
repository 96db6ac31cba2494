package app

import (
	"fmt"
	"time"

	"stock-dashboard/config"
	"stock-dashboard/internal/settings"
	"stock-dashboard/observability"
	"stock-dashboard/refresh"
	"stock-dashboard/services"
)

// Build wires providers, clients and the refresh loop from cfg. An
// environment-supplied NewsAPI key is seeded into the in-memory store.
func Build(cfg *config.Config, breakers *services.CircuitBreakerRegistry) (*App, error) {
	if breakers == nil {
		breakers = services.GetGlobalRegistry()
	}

	session, err := initialSession(cfg)
	if err != nil {
		return nil, err
	}

	yahoo := services.NewYahooService(cfg.MarketData.YahooBaseURL, cfg.MarketData.Timeout).WithBreakers(breakers)

	var provider services.MarketDataProvider = yahoo
	if cfg.MarketData.Provider == config.ProviderAlpaca {
		provider = services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret).WithBreakers(breakers)
	}
	observability.WithProvider(provider.Name()).Info("Market data provider selected")

	store := settings.NewStore()
	store.Seed(settings.ServiceNewsAPI, cfg.NewsAPI.APIKey)
	store.Seed(settings.ServiceAlphaVantage, cfg.AlphaVantage.APIKey)

	alphaVantage := services.NewAlphaVantageService("", cfg.AlphaVantage.BaseURL).
		WithBreakers(breakers).
		WithCredential(func() string { return store.APIKey(settings.ServiceAlphaVantage) })
	resolvers := []services.CompanyNameResolver{alphaVantage, yahoo}
	if !cfg.HasAlphaVantage() {
		observability.Debug("Alpha Vantage key not set, company names come from chart metadata")
	}

	newsAPI := services.NewNewsAPIService(cfg.NewsAPI.BaseURL).WithBreakers(breakers)
	news := services.NewNewsClient(newsAPI, func() string {
		return store.APIKey(settings.ServiceNewsAPI)
	}, resolvers...)
	if !news.HasCredential() {
		observability.Warn("NewsAPI key not set, news will be unavailable until one is entered")
	}

	loop := refresh.NewLoop(session, services.NewMarketDataClient(provider), news, LoopOptions(cfg))

	validator := settings.NewValidator(cfg.NewsAPI.BaseURL, cfg.AlphaVantage.BaseURL)

	return New(cfg, loop, store, validator, breakers), nil
}

// LoopOptions maps the refresh config onto loop options. A configured
// cache TTL of 0 turns that cache off.
func LoopOptions(cfg *config.Config) refresh.Options {
	return refresh.Options{
		Interval: cfg.Refresh.Interval,
		QuoteTTL: cacheTTL(cfg.Refresh.QuoteCacheTTL),
		NewsTTL:  cacheTTL(cfg.Refresh.NewsCacheTTL),
		Currency: cfg.Dashboard.CurrencySymbol,
	}
}

func cacheTTL(d time.Duration) time.Duration {
	if d == 0 {
		return refresh.NoCache
	}
	return d
}

// NewBreakers creates the provider circuit breaker registry from the
// configured trip policy.
func NewBreakers(cfg *config.Config) *services.CircuitBreakerRegistry {
	policy := services.DefaultCircuitBreakerConfig
	policy.MinRequests = uint32(cfg.Breaker.MinRequests)
	policy.FailureRatio = cfg.Breaker.FailureRatio
	policy.Timeout = cfg.Breaker.OpenTimeout
	return services.NewCircuitBreakerRegistry(policy)
}

func initialSession(cfg *config.Config) (refresh.Session, error) {
	params, err := cfg.DashboardParameters()
	if err != nil {
		return refresh.Session{}, fmt.Errorf("invalid dashboard defaults: %w", err)
	}
	return refresh.NewSession(params)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stock-dashboard/observability"
)

const defaultAlphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageService resolves company names from the Alpha Vantage OVERVIEW endpoint
type AlphaVantageService struct {
	apiKey     string
	credential CredentialSource
	httpClient *http.Client
	baseURL    string
	breakers   *CircuitBreakerRegistry
	retry      RetryConfig
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey, baseURL string) *AlphaVantageService {
	if baseURL == "" {
		baseURL = defaultAlphaVantageBaseURL
	}
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		retry:      DefaultRetryConfig,
	}
}

// WithBreakers sets the circuit breaker registry (nil means global)
func (s *AlphaVantageService) WithBreakers(r *CircuitBreakerRegistry) *AlphaVantageService {
	s.breakers = r
	return s
}

// WithCredential reads the API key from src on every lookup instead of
// the key given at construction
func (s *AlphaVantageService) WithCredential(src CredentialSource) *AlphaVantageService {
	s.credential = src
	return s
}

func (s *AlphaVantageService) key() string {
	if s.credential != nil {
		return s.credential()
	}
	return s.apiKey
}

// WithRetryConfig overrides the retry policy
func (s *AlphaVantageService) WithRetryConfig(cfg RetryConfig) *AlphaVantageService {
	s.retry = cfg
	return s
}

// OverviewResponse is the subset of the company overview response used here
type OverviewResponse struct {
	Symbol       string `json:"Symbol"`
	Name         string `json:"Name"`
	Exchange     string `json:"Exchange"`
	Currency     string `json:"Currency"`
	Country      string `json:"Country"`
	Sector       string `json:"Sector"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// avSymbol converts Yahoo-style exchange suffixes to Alpha Vantage ones
func avSymbol(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, ".NS"):
		return strings.TrimSuffix(symbol, ".NS") + ".NSE"
	case strings.HasSuffix(symbol, ".BO"):
		return strings.TrimSuffix(symbol, ".BO") + ".BSE"
	}
	return symbol
}

// CompanyName returns the company name for symbol
func (s *AlphaVantageService) CompanyName(ctx context.Context, symbol string) (string, error) {
	apiKey := s.key()
	if apiKey == "" {
		return "", ErrNoCredential
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "overview")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlphaVantage, "overview")

	name, err := ExecuteWithBreaker(ctx, s.breakers, BreakerAlphaVantage, func() (string, error) {
		var name string
		err := WithRetry(ctx, s.retry, func() error {
			overview, err := s.overview(ctx, avSymbol(symbol), apiKey)
			if err != nil {
				return err
			}
			if overview.Name == "" {
				return Permanent(fmt.Errorf("%s: no company name: %w", symbol, ErrNoData))
			}
			name = overview.Name
			return nil
		})
		return name, err
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "overview", "request")
		return "", err
	}
	return name, nil
}

func (s *AlphaVantageService) overview(ctx context.Context, symbol, apiKey string) (*OverviewResponse, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)
	params.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read overview: %w", err)
	}

	var overview OverviewResponse
	if err := json.Unmarshal(body, &overview); err != nil {
		return nil, fmt.Errorf("failed to decode overview: %w", err)
	}

	// Alpha Vantage reports errors and rate limits with HTTP 200
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err == nil {
		if msg, ok := raw["Error Message"].(string); ok && msg != "" {
			return nil, Permanent(fmt.Errorf("alpha vantage error: %s", msg))
		}
	}
	if overview.Note != "" || overview.Information != "" {
		return nil, Permanent(fmt.Errorf("alpha vantage rate limited: %s%s", overview.Note, overview.Information))
	}

	return &overview, nil
}

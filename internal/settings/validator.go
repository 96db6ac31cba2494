package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultNewsAPIBaseURL      = "https://newsapi.org/v2"
	defaultAlphaVantageBaseURL = "https://www.alphavantage.co/query"
)

// ValidationResult represents the result of validating an API key
type ValidationResult struct {
	Service  ServiceName   `json:"service"`
	Valid    bool          `json:"valid"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration_ms"`
}

// Validator validates API key configurations
type Validator struct {
	client              *http.Client
	newsAPIBaseURL      string
	alphaVantageBaseURL string
}

// NewValidator creates a new API key validator. Empty base URLs select the
// public endpoints.
func NewValidator(newsAPIBaseURL, alphaVantageBaseURL string) *Validator {
	if newsAPIBaseURL == "" {
		newsAPIBaseURL = defaultNewsAPIBaseURL
	}
	if alphaVantageBaseURL == "" {
		alphaVantageBaseURL = defaultAlphaVantageBaseURL
	}
	return &Validator{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		newsAPIBaseURL:      strings.TrimRight(newsAPIBaseURL, "/"),
		alphaVantageBaseURL: alphaVantageBaseURL,
	}
}

// ValidateAPIKey tests if an API key is valid for the given service
func (v *Validator) ValidateAPIKey(ctx context.Context, config *APIKeyConfig) (*ValidationResult, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	start := time.Now()
	result := &ValidationResult{
		Service: config.ServiceName,
	}

	var err error
	switch config.ServiceName {
	case ServiceNewsAPI:
		err = v.validateNewsAPI(ctx, config)
	case ServiceAlphaVantage:
		err = v.validateAlphaVantage(ctx, config)
	default:
		err = fmt.Errorf("unknown service: %s", config.ServiceName)
	}

	result.Duration = time.Since(start)

	if err != nil {
		result.Valid = false
		result.Message = err.Error()
	} else {
		result.Valid = true
		result.Message = "Connection successful"
	}

	return result, nil
}

// validateNewsAPI tests NewsAPI connectivity
func (v *Validator) validateNewsAPI(ctx context.Context, config *APIKeyConfig) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.newsAPIBaseURL+"/everything?q=nifty&pageSize=1", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", config.APIKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.New("invalid API key")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.New("rate limited, try again later")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

// validateAlphaVantage tests Alpha Vantage API connectivity
func (v *Validator) validateAlphaVantage(ctx context.Context, config *APIKeyConfig) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}

	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", "IBM")
	params.Set("apikey", config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.alphaVantageBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	// Alpha Vantage reports bad keys in "Error Message"; "Note" is a rate limit on a valid key
	if errMsg, ok := result["Error Message"].(string); ok {
		return fmt.Errorf("API error: %s", errMsg)
	}

	return nil
}

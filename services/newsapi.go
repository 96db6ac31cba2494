package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stock-dashboard/models"
	"stock-dashboard/observability"
)

const defaultNewsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPIService handles communication with NewsAPI.org
type NewsAPIService struct {
	httpClient *http.Client
	baseURL    string
	breakers   *CircuitBreakerRegistry
	retry      RetryConfig
}

// NewNewsAPIService creates a new NewsAPIService instance
func NewNewsAPIService(baseURL string) *NewsAPIService {
	if baseURL == "" {
		baseURL = defaultNewsAPIBaseURL
	}
	return &NewsAPIService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		retry:      DefaultRetryConfig,
	}
}

// WithBreakers sets the circuit breaker registry (nil means global)
func (s *NewsAPIService) WithBreakers(r *CircuitBreakerRegistry) *NewsAPIService {
	s.breakers = r
	return s
}

// WithRetryConfig overrides the retry policy
func (s *NewsAPIService) WithRetryConfig(cfg RetryConfig) *NewsAPIService {
	s.retry = cfg
	return s
}

// NewsAPIResponse represents the response from NewsAPI
type NewsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// SearchNews runs an "everything" search sorted by publication time
func (s *NewsAPIService) SearchNews(ctx context.Context, apiKey string, q NewsQuery) ([]models.NewsArticle, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	ctx, span := observability.StartSpan(ctx, "newsapi.SearchNews")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerNewsAPI, "get_articles")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerNewsAPI, "get_articles")

	var articles []models.NewsArticle
	articles, err = ExecuteWithBreaker(ctx, s.breakers, BreakerNewsAPI, func() ([]models.NewsArticle, error) {
		var out []models.NewsArticle
		retryErr := WithRetry(ctx, s.retry, func() error {
			var err error
			out, err = s.everything(ctx, apiKey, q, limit)
			return err
		})
		return out, retryErr
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerNewsAPI, "get_articles", "request")
		return nil, err
	}
	return articles, nil
}

func (s *NewsAPIService) everything(ctx context.Context, apiKey string, q NewsQuery, limit int) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(limit))
	if !q.From.IsZero() {
		params.Set("from", q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	var newsResp NewsAPIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&newsResp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, Permanent(fmt.Errorf("NewsAPI rejected the API key: %s", newsResp.Message))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("NewsAPI returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, Permanent(fmt.Errorf("NewsAPI returned status %d: %s", resp.StatusCode, newsResp.Message))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if newsResp.Status == "error" {
		return nil, Permanent(fmt.Errorf("NewsAPI error %s: %s", newsResp.Code, newsResp.Message))
	}

	articles := make([]models.NewsArticle, 0, len(newsResp.Articles))
	for _, item := range newsResp.Articles {
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			observability.Debug("unparseable article timestamp, skipping",
				"published_at", item.PublishedAt,
				"error", err)
			continue
		}

		articles = append(articles, models.NewsArticle{
			Title:       plainText(item.Title),
			Description: plainText(item.Description),
			URL:         item.URL,
			Source:      item.Source.Name,
			Author:      item.Author,
			ImageURL:    item.URLToImage,
			PublishedAt: publishedAt.UTC(),
		})
	}

	return articles, nil
}

// plainText strips HTML markup and collapses whitespace
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

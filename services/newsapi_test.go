package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestNewsAPI(url string) *NewsAPIService {
	return NewNewsAPIService(url).
		WithBreakers(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)).
		WithRetryConfig(noRetry)
}

const newsAPIBody = `{
	"status": "ok",
	"totalResults": 2,
	"articles": [
		{
			"source": {"id": null, "name": "Economic Times"},
			"author": "Staff",
			"title": "Reliance shares climb",
			"description": "<p>Reliance Industries <b>rose</b> 2% &amp; more</p>",
			"url": "https://example.com/a",
			"publishedAt": "2024-06-03T10:00:00Z"
		},
		{
			"source": {"id": "reuters", "name": "Reuters"},
			"title": "Markets wrap",
			"description": "Sensex ends flat",
			"url": "https://example.com/b",
			"publishedAt": "not-a-date"
		}
	]
}`

func TestNewNewsAPIService(t *testing.T) {
	service := NewNewsAPIService("")
	if service.baseURL != defaultNewsAPIBaseURL {
		t.Errorf("baseURL = %v, want default", service.baseURL)
	}
}

func TestNewsAPIService_SearchNews(t *testing.T) {
	var gotKey string
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("X-Api-Key")
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q":        q.Get("q"),
			"from":     q.Get("from"),
			"to":       q.Get("to"),
			"sortBy":   q.Get("sortBy"),
			"pageSize": q.Get("pageSize"),
		}
		w.Write([]byte(newsAPIBody))
	}))
	defer server.Close()

	to := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	articles, err := newTestNewsAPI(server.URL).SearchNews(context.Background(), "secret", NewsQuery{
		Query: "Reliance Industries OR RELIANCE.NS",
		From:  to.AddDate(0, 0, -7),
		To:    to,
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("SearchNews() error: %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("X-Api-Key = %q", gotKey)
	}
	want := map[string]string{
		"q":        "Reliance Industries OR RELIANCE.NS",
		"from":     "2024-05-29",
		"to":       "2024-06-05",
		"sortBy":   "publishedAt",
		"pageSize": "5",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(articles) != 1 {
		t.Fatalf("expected 1 article (bad timestamp skipped), got %d", len(articles))
	}
	if articles[0].Description != "Reliance Industries rose 2% & more" {
		t.Errorf("Description = %q", articles[0].Description)
	}
	if articles[0].Source != "Economic Times" {
		t.Errorf("Source = %q", articles[0].Source)
	}
}

func TestNewsAPIService_SearchNews_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`},
		{"rate limited", http.StatusTooManyRequests, `{"status":"error","code":"rateLimited"}`},
		{"error status body", http.StatusOK, `{"status":"error","code":"parameterInvalid","message":"bad"}`},
		{"bad json", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := newTestNewsAPI(server.URL).SearchNews(context.Background(), "k", NewsQuery{Query: "x"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewsAPIService_SearchNews_NoKey(t *testing.T) {
	_, err := newTestNewsAPI("http://unused.invalid").SearchNews(context.Background(), "", NewsQuery{Query: "x"})
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"plain text":                    "plain text",
		"  padded  ":                    "padded",
		"<p>Hello <i>world</i></p>":     "Hello world",
		"Q1 results &amp; guidance":     "Q1 results & guidance",
		"<ul><li>one</li><li>two</li>":  "onetwo",
	}
	for in, want := range tests {
		if got := plainText(in); got != want {
			t.Errorf("plainText(%q) = %q, want %q", in, got, want)
		}
	}
}

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stock-dashboard/models"
	"stock-dashboard/observability"
)

const (
	// MaxNewsArticles is the number of articles shown per symbol
	MaxNewsArticles = 5
	// NewsWindow is how far back articles are searched
	NewsWindow = 7 * 24 * time.Hour

	NewsUnavailableNoCredential = "news unavailable: NewsAPI key not configured"
	NewsUnavailableProvider     = "news unavailable: provider error"
)

// CredentialSource returns the current NewsAPI key, empty if none
type CredentialSource func() string

// NewsClient fetches recent headlines per symbol. It never fails: missing
// credentials and provider errors yield an empty feed with a reason.
type NewsClient struct {
	provider   NewsProvider
	credential CredentialSource
	resolvers  []CompanyNameResolver
	now        func() time.Time
}

// NewNewsClient creates a NewsClient. Resolvers are tried in order when no
// company name hint is given.
func NewNewsClient(provider NewsProvider, credential CredentialSource, resolvers ...CompanyNameResolver) *NewsClient {
	if credential == nil {
		credential = func() string { return "" }
	}
	return &NewsClient{
		provider:   provider,
		credential: credential,
		resolvers:  resolvers,
		now:        time.Now,
	}
}

// HasCredential reports whether a NewsAPI key is currently available
func (c *NewsClient) HasCredential() bool {
	return c.credential() != ""
}

// ResolveCompanyName returns hint if set, then the first resolver answer,
// then the symbol without its exchange suffix.
func (c *NewsClient) ResolveCompanyName(ctx context.Context, symbol, hint string) string {
	if hint != "" {
		return hint
	}
	for _, r := range c.resolvers {
		name, err := r.CompanyName(ctx, symbol)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			observability.WithSymbol(symbol).Debug("company name lookup failed", "error", err)
		}
	}
	return models.SymbolBase(symbol)
}

// Fetch returns at most MaxNewsArticles articles from the last NewsWindow,
// newest first.
func (c *NewsClient) Fetch(ctx context.Context, symbol, companyHint string) models.NewsFeed {
	now := c.now()
	feed := models.NewsFeed{
		Symbol:    symbol,
		Articles:  []models.NewsArticle{},
		FetchedAt: now,
	}

	apiKey := c.credential()
	if apiKey == "" {
		feed.CompanyName = companyHint
		feed.Unavailable = NewsUnavailableNoCredential
		return feed
	}

	feed.CompanyName = c.ResolveCompanyName(ctx, symbol, companyHint)
	from := now.Add(-NewsWindow)

	articles, err := c.provider.SearchNews(ctx, apiKey, NewsQuery{
		Query: fmt.Sprintf("%s OR %s", feed.CompanyName, symbol),
		From:  from,
		To:    now,
		Limit: MaxNewsArticles,
	})
	if err != nil {
		observability.WithSymbol(symbol).Warn("news fetch failed", "error", err)
		feed.Unavailable = NewsUnavailableProvider
		return feed
	}

	feed.Articles = recentArticles(articles, from, MaxNewsArticles)
	return feed
}

// recentArticles keeps articles published at or after from, newest first
func recentArticles(articles []models.NewsArticle, from time.Time, limit int) []models.NewsArticle {
	out := make([]models.NewsArticle, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.Before(from) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

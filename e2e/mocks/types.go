package mocks

// YahooBar is one bar served by the mock chart endpoint.
type YahooBar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// YahooSymbol configures the chart returned for one symbol.
type YahooSymbol struct {
	LongName  string
	ShortName string
	Currency  string
	Bars      []YahooBar
}

// NewsArticle represents a NewsAPI article.
type NewsArticle struct {
	Source      NewsSource `json:"source"`
	Author      string     `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	PublishedAt string     `json:"publishedAt"`
	Content     string     `json:"content"`
}

// NewsSource represents the source of a news article.
type NewsSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewsAPIResponse represents the NewsAPI /everything response.
type NewsAPIResponse struct {
	Status       string        `json:"status"`
	Code         string        `json:"code,omitempty"`
	Message      string        `json:"message,omitempty"`
	TotalResults int           `json:"totalResults"`
	Articles     []NewsArticle `json:"articles"`
}

// AlphaVantageOverview is the subset of the OVERVIEW response the dashboard reads.
type AlphaVantageOverview struct {
	Symbol   string `json:"Symbol"`
	Name     string `json:"Name"`
	Exchange string `json:"Exchange"`
	Currency string `json:"Currency"`
	Country  string `json:"Country"`
	Sector   string `json:"Sector"`
}

type yahooQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type yahooResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		ShortName string `json:"shortName,omitempty"`
		LongName  string `json:"longName,omitempty"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []yahooQuote `json:"quote"`
	} `json:"indicators"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  *yahooError   `json:"error"`
	} `json:"chart"`
}

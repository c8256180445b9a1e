// Package marketdata fetches FX reference data from Yahoo Finance.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2.0 // requests per second

	// Source is stored on rates fetched by this client.
	Source = "yahoo"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// chartResponse is the subset of the Yahoo v8 chart payload used here.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string          `json:"symbol"`
				Currency           string          `json:"currency"`
				RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// ForexClient fetches exchange rates. Rates are cached in memory for the
// lifetime of the client, keyed by currency pair.
type ForexClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// Option configures the client.
type Option func(*ForexClient)

// WithBaseURL sets the chart endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *ForexClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *ForexClient) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets the maximum request rate. A non-positive value disables limiting.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *ForexClient) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), int(math.Max(1, math.Ceil(requestsPerSecond))))
	}
}

// NewForexClient creates a new client.
func NewForexClient(opts ...Option) *ForexClient {
	c := &ForexClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		rates:      make(map[string]decimal.Decimal),
	}
	WithRateLimit(DefaultRateLimit)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns how many units of to one unit of from costs. Same-currency
// pairs return 1 without a request.
func (c *ForexClient) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	pair := from + to
	c.mu.RLock()
	cached, ok := c.rates[pair]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	r, err := c.fetch(ctx, pair+"=X")
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.rates[pair] = r
	c.mu.Unlock()
	return r, nil
}

func (c *ForexClient) fetch(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Decimal{}, fmt.Errorf("rate limiter: %w", err)
	}

	url := c.baseURL + "/" + ticker + "?interval=1d&range=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("building forex request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("forex http request for %s: %w", ticker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("forex request for %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decoding forex response for %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		return decimal.Decimal{}, fmt.Errorf("forex chart error for %s: %s: %s", ticker, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return decimal.Decimal{}, fmt.Errorf("no forex results for %s", ticker)
	}

	r := chart.Chart.Result[0].Meta.RegularMarketPrice
	if !r.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("invalid forex rate for %s: %s", ticker, r)
	}
	return r, nil
}

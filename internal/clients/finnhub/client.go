// Package finnhub provides the tertiary, quote-only market-data client.
// Finnhub is the last resort in the provider priority order: its free tier
// has no daily candle access, so it contributes no historical series — only
// a live price when both series-capable providers have failed.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

const (
	DefaultBaseURL   = "https://finnhub.io/api/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client implements the MarketProvider interface for Finnhub.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return models.SourceFinnhub
}

// FetchHistory always returns an empty series: the free tier exposes no
// daily candles. Present so the client slots into the generic provider
// escalation without special-casing.
func (c *Client) FetchHistory(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, error) {
	c.logger.Debug().Str("ticker", ticker).Msg("Finnhub has no historical series; skipping")
	return nil, nil
}

// quoteResponse is the /quote payload: single-letter keys.
type quoteResponse struct {
	Current float64 `json:"c"`
	High    float64 `json:"h"`
	Low     float64 `json:"l"`
	Open    float64 `json:"o"`
}

// FetchQuote retrieves a live snapshot. Upstream failures and malformed
// payloads degrade to a zero quote with a logged reason.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (models.ProviderQuote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.ProviderQuote{}, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.ProviderQuote{}, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("ticker", ticker).Msg("Finnhub API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ProviderQuote{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Str("ticker", ticker).Int("status", resp.StatusCode).Msg("Finnhub API non-OK response")
		return models.ProviderQuote{}, nil
	}

	var raw quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("Finnhub API malformed payload")
		return models.ProviderQuote{}, nil
	}

	return models.ProviderQuote{
		Price: raw.Current,
		Open:  raw.Open,
		High:  raw.High,
		Low:   raw.Low,
	}, nil
}

// Ensure Client implements MarketProvider
var _ interfaces.MarketProvider = (*Client)(nil)

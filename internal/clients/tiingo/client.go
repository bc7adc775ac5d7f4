// Package tiingo provides the primary market-data client (Tiingo API).
// Tiingo is first in the provider priority order: deepest daily history and
// populated volume on the free tier.
package tiingo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

const (
	DefaultBaseURL   = "https://api.tiingo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client implements the MarketProvider interface for Tiingo.
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

// NewClient creates a new Tiingo client
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
	return models.SourceTiingo
}

// get performs a rate-limited GET request. Non-2xx responses and malformed
// payloads are absorbed: the reason is logged and ok=false is returned so
// callers degrade to an empty result instead of failing the pipeline.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) (ok bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Tiingo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", path).
			Str("body", string(body)).
			Msg("Tiingo API non-OK response")
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", path).Msg("Tiingo API malformed payload")
		return false, nil
	}

	return true, nil
}

// dailyBarResponse is one element of the daily prices payload.
type dailyBarResponse struct {
	Date     string  `json:"date"` // RFC3339 with trailing .000Z
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   int64   `json:"volume"`
}

// FetchHistory retrieves daily bars for [from, to], ascending by date.
func (c *Client) FetchHistory(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, error) {
	params := url.Values{}
	params.Set("startDate", from.Format("2006-01-02"))
	params.Set("endDate", to.Format("2006-01-02"))
	params.Set("resampleFreq", "daily")

	path := fmt.Sprintf("/tiingo/daily/%s/prices", url.PathEscape(ticker))

	var raw []dailyBarResponse
	ok, err := c.get(ctx, path, params, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	bars := make([]models.ProviderBar, 0, len(raw))
	for _, r := range raw {
		date, perr := time.Parse(time.RFC3339, r.Date)
		if perr != nil {
			// Some plans return bare dates without a time component.
			date, perr = time.Parse("2006-01-02", r.Date)
		}
		if perr != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", r.Date).Msg("Tiingo bar with unparseable date skipped")
			continue
		}
		bars = append(bars, models.ProviderBar{
			Date:     date,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Tiingo history fetched")
	return bars, nil
}

// iexQuoteResponse is one element of the IEX real-time payload.
type iexQuoteResponse struct {
	Last      float64 `json:"last"`
	TngoLast  float64 `json:"tngoLast"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prevClose"`
}

// FetchQuote retrieves a live snapshot via the IEX endpoint.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (models.ProviderQuote, error) {
	path := fmt.Sprintf("/iex/%s", url.PathEscape(ticker))

	var raw []iexQuoteResponse
	ok, err := c.get(ctx, path, nil, &raw)
	if err != nil {
		return models.ProviderQuote{}, err
	}
	if !ok || len(raw) == 0 {
		return models.ProviderQuote{}, nil
	}

	q := raw[0]
	price := q.TngoLast
	if price == 0 {
		price = q.Last
	}

	return models.ProviderQuote{
		Price: price,
		Open:  q.Open,
		High:  q.High,
		Low:   q.Low,
	}, nil
}

// Ensure Client implements MarketProvider
var _ interfaces.MarketProvider = (*Client)(nil)

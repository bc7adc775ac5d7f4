// Package alphavantage provides the secondary market-data client.
// Alpha Vantage is tried when the primary has no data or has exhausted its
// quota. Its payloads differ from the primary's in two awkward ways: the
// daily series is a date-keyed object rather than an array, and every number
// arrives as a string.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 1 // requests per second (free tier is 25/day)
)

// numString handles Alpha Vantage numeric values, which arrive as strings.
type numString float64

func (n *numString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "None" || s == "N/A" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = numString(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = numString(f)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into number", string(data))
}

// Client implements the MarketProvider interface for Alpha Vantage.
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

// NewClient creates a new Alpha Vantage client
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
	return models.SourceAlphaVantage
}

// query performs a rate-limited GET against /query. Non-2xx responses and
// malformed payloads are logged and reported as ok=false.
func (c *Client) query(ctx context.Context, params url.Values, result interface{}) (ok bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", params.Get("function")).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("function", params.Get("function")).
			Msg("Alpha Vantage API non-OK response")
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		c.logger.Warn().Err(err).Msg("Alpha Vantage API malformed payload")
		return false, nil
	}

	return true, nil
}

type dailyBarFields struct {
	Open   numString `json:"1. open"`
	High   numString `json:"2. high"`
	Low    numString `json:"3. low"`
	Close  numString `json:"4. close"`
	Volume numString `json:"5. volume"`
}

type dailySeriesResponse struct {
	Series map[string]dailyBarFields `json:"Time Series (Daily)"`
	// Quota exhaustion and bad symbols come back as HTTP 200 with one of
	// these fields instead of a series.
	Note        string `json:"Note"`
	Information string `json:"Information"`
	ErrorMsg    string `json:"Error Message"`
}

// FetchHistory retrieves daily bars for [from, to], ascending by date.
// The endpoint has no date filter, so the compact (last ~100 trading days)
// series is fetched and filtered locally.
func (c *Client) FetchHistory(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", ticker)
	params.Set("outputsize", "compact")

	var raw dailySeriesResponse
	ok, err := c.query(ctx, params, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if len(raw.Series) == 0 {
		reason := raw.ErrorMsg
		if reason == "" {
			reason = raw.Note
		}
		if reason == "" {
			reason = raw.Information
		}
		c.logger.Warn().Str("ticker", ticker).Str("reason", reason).Msg("Alpha Vantage returned no daily series")
		return nil, nil
	}

	bars := make([]models.ProviderBar, 0, len(raw.Series))
	for dateStr, f := range raw.Series {
		date, perr := time.Parse("2006-01-02", dateStr)
		if perr != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", dateStr).Msg("Alpha Vantage bar with unparseable date skipped")
			continue
		}
		if date.Before(from) || date.After(to) {
			continue
		}
		bars = append(bars, models.ProviderBar{
			Date:     date,
			Open:     float64(f.Open),
			High:     float64(f.High),
			Low:      float64(f.Low),
			Close:    float64(f.Close),
			AdjClose: float64(f.Close), // unadjusted endpoint; close stands in
			Volume:   int64(f.Volume),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Alpha Vantage history fetched")
	return bars, nil
}

type globalQuoteResponse struct {
	Quote struct {
		Open  numString `json:"02. open"`
		High  numString `json:"03. high"`
		Low   numString `json:"04. low"`
		Price numString `json:"05. price"`
	} `json:"Global Quote"`
}

// FetchQuote retrieves a live snapshot via GLOBAL_QUOTE.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (models.ProviderQuote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", ticker)

	var raw globalQuoteResponse
	ok, err := c.query(ctx, params, &raw)
	if err != nil {
		return models.ProviderQuote{}, err
	}
	if !ok {
		return models.ProviderQuote{}, nil
	}

	return models.ProviderQuote{
		Price: float64(raw.Quote.Price),
		Open:  float64(raw.Quote.Open),
		High:  float64(raw.Quote.High),
		Low:   float64(raw.Quote.Low),
	}, nil
}

// Ensure Client implements MarketProvider
var _ interfaces.MarketProvider = (*Client)(nil)

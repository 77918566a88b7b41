// Package eodhd provides a market data source backed by the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "NA" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"
)

// Client implements interfaces.MarketDataSource
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
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
		if requestsPerSecond <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithDefaultExchange sets the exchange suffix used for bare symbols
func WithDefaultExchange(exchange string) ClientOption {
	return func(c *Client) {
		if exchange != "" {
			c.exchange = strings.ToUpper(exchange)
		}
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
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

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether a later attempt may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Ticker maps a portfolio symbol to the EODHD "CODE.EXCHANGE" form. Symbols
// that already carry an exchange suffix are passed through.
func (c *Client) Ticker(symbol string) string {
	symbol = models.NormalizeSymbol(symbol)
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + c.exchange
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// classify wraps network, rate limit and server errors as TransientFetchError.
// Other failures (bad key, unknown ticker, undecodable body) pass through.
func classify(symbol, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() {
			return &models.TransientFetchError{Symbol: symbol, Op: op, Err: err}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "failed to execute request") {
		return &models.TransientFetchError{Symbol: symbol, Op: op, Err: err}
	}
	return err
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        int64       `json:"volume"`
}

// FetchPrices retrieves daily closes in ascending date order. Unadjusted
// closes are used because share counts come from the event log.
func (c *Client) FetchPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.Format(common.DateFormat))
	}
	if !to.IsZero() {
		params.Set("to", to.Format(common.DateFormat))
	}

	var bars []eodBarResponse
	if err := c.get(ctx, "/eod/"+c.Ticker(symbol), params, &bars); err != nil {
		return nil, classify(symbol, "prices", err)
	}

	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		date, err := common.ParseDate(bar.Date)
		if err != nil || bar.Close <= 0 {
			c.logger.Debug().Str("symbol", symbol).Str("date", bar.Date).Msg("Skipping unusable EOD bar")
			continue
		}
		points = append(points, models.PricePoint{Date: date, Close: float64(bar.Close)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	c.logger.Debug().Str("symbol", symbol).Int("bars", len(points)).Msg("Fetched EOD prices")
	return points, nil
}

// dividendResponse represents one entry of the /div endpoint
type dividendResponse struct {
	Date            string      `json:"date"` // ex-date
	PaymentDate     string      `json:"paymentDate"`
	Value           flexFloat64 `json:"value"`
	UnadjustedValue flexFloat64 `json:"unadjustedValue"`
	Currency        string      `json:"currency"`
}

// FetchDividends retrieves per-share dividends keyed by ex-date.
func (c *Client) FetchDividends(ctx context.Context, symbol string, from, to time.Time) ([]models.DividendPoint, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", from.Format(common.DateFormat))
	}
	if !to.IsZero() {
		params.Set("to", to.Format(common.DateFormat))
	}

	var divs []dividendResponse
	if err := c.get(ctx, "/div/"+c.Ticker(symbol), params, &divs); err != nil {
		return nil, classify(symbol, "dividends", err)
	}

	points := make([]models.DividendPoint, 0, len(divs))
	for _, d := range divs {
		date, err := common.ParseDate(d.Date)
		if err != nil {
			continue
		}
		amount := float64(d.UnadjustedValue)
		if amount <= 0 {
			amount = float64(d.Value)
		}
		if amount <= 0 {
			continue
		}
		points = append(points, models.DividendPoint{Date: date, Amount: amount})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return points, nil
}

// realtimeResponse represents the /real-time endpoint. Fields are "NA" outside
// trading hours for some exchanges.
type realtimeResponse struct {
	Code          string      `json:"code"`
	Timestamp     flexFloat64 `json:"timestamp"`
	Close         flexFloat64 `json:"close"`
	PreviousClose flexFloat64 `json:"previousClose"`
}

// FetchRealtime retrieves the latest delayed quote.
func (c *Client) FetchRealtime(ctx context.Context, symbol string) (*models.RealtimeQuote, error) {
	var resp realtimeResponse
	if err := c.get(ctx, "/real-time/"+c.Ticker(symbol), nil, &resp); err != nil {
		return nil, classify(symbol, "realtime", err)
	}

	price := float64(resp.Close)
	if price <= 0 {
		price = float64(resp.PreviousClose)
	}
	if price <= 0 {
		return nil, fmt.Errorf("no realtime price for %s", symbol)
	}

	asOf := time.Now()
	if resp.Timestamp > 0 {
		asOf = time.Unix(int64(resp.Timestamp), 0)
	}

	return &models.RealtimeQuote{
		Symbol: models.NormalizeSymbol(symbol),
		Price:  price,
		AsOf:   asOf,
	}, nil
}

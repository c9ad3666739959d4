// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// Valid is false for null, empty or "N/A" values.
type flexFloat64 struct {
	Value float64
	Valid bool
}

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	*f = flexFloat64{}
	if string(data) == "null" {
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64{Value: num, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		*f = flexFloat64{Value: num, Valid: true}
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// ptr returns the value as an optional float, treating zero as missing
// when zeroIsMissing is set. EODHD reports absent ratios as 0.
func (f flexFloat64) ptr(zeroIsMissing bool) *float64 {
	if !f.Valid || (zeroIsMissing && f.Value == 0) {
		return nil
	}
	v := f.Value
	return &v
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

var _ interfaces.MarketDataClient = (*Client)(nil)

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

// WithExchange sets the exchange suffix appended to plain tickers
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = exchange
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

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "eodhd",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		// a 404 for one symbol says nothing about the service
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

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

// symbol maps a canonical ticker to the EODHD code, e.g. BRK-B -> BRK-B.US
func (c *Client) symbol(ticker string) string {
	if strings.Contains(ticker, ".") || c.exchange == "" {
		return ticker
	}
	return ticker + "." + c.exchange
}

// get performs a rate-limited GET request through the circuit breaker
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doGet(ctx, path, params, result)
	})
	return err
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

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
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// GetEOD retrieves daily bars between from and to, oldest first
func (c *Client) GetEOD(ctx context.Context, ticker string, from, to time.Time) ([]models.EODBar, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	path := fmt.Sprintf("/eod/%s", c.symbol(ticker))

	var bars []eodBarResponse
	if err := c.get(ctx, path, params, &bars); err != nil {
		return nil, err
	}

	result := make([]models.EODBar, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			continue
		}
		result = append(result, models.EODBar{
			Date:     date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: bar.AdjustedClose,
			Volume:   bar.Volume,
		})
	}

	return result, nil
}

// fundamentalsResponse represents the API response structure
type fundamentalsResponse struct {
	General struct {
		Code        string `json:"Code"`
		Name        string `json:"Name"`
		Type        string `json:"Type"`
		Sector      string `json:"Sector"`
		Industry    string `json:"Industry"`
		CountryName string `json:"CountryName"`
		CountryISO  string `json:"CountryISO"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization   flexFloat64 `json:"MarketCapitalization"`
		EarningsShare          flexFloat64 `json:"EarningsShare"`
		DividendYield          flexFloat64 `json:"DividendYield"`
		EPSEstimateCurrentYear flexFloat64 `json:"EPSEstimateCurrentYear"`
		EPSEstimateNextYear    flexFloat64 `json:"EPSEstimateNextYear"`
	} `json:"Highlights"`
	Valuation struct {
		ForwardPE flexFloat64 `json:"ForwardPE"`
	} `json:"Valuation"`
}

// GetFundamentals retrieves the valuation and classification fields used
// for enrichment. EODHD reports dividend yield as a fraction.
func (c *Client) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	path := fmt.Sprintf("/fundamentals/%s", c.symbol(ticker))

	params := url.Values{}
	params.Set("filter", "General,Highlights,Valuation")

	var resp fundamentalsResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	f := &models.Fundamentals{
		Ticker:          ticker,
		Name:            resp.General.Name,
		Sector:          resp.General.Sector,
		Industry:        resp.General.Industry,
		Country:         resp.General.CountryName,
		MarketCap:       resp.Highlights.MarketCapitalization.ptr(true),
		ForwardPE:       resp.Valuation.ForwardPE.ptr(true),
		TrailingEPS:     resp.Highlights.EarningsShare.ptr(false),
		DividendYield:   resp.Highlights.DividendYield.ptr(false),
		YieldConvention: models.YieldFraction,
	}
	if f.Country == "" {
		f.Country = resp.General.CountryISO
	}

	// Forward EPS is next year's consensus, falling back to the current year
	if eps := resp.Highlights.EPSEstimateNextYear.ptr(true); eps != nil {
		f.ForwardEPS = eps
	} else {
		f.ForwardEPS = resp.Highlights.EPSEstimateCurrentYear.ptr(true)
	}

	return f, nil
}

type earningsCalendarResponse struct {
	Earnings []struct {
		Code       string      `json:"code"`
		ReportDate string      `json:"report_date"`
		Date       string      `json:"date"`
		Actual     flexFloat64 `json:"actual"`
		Estimate   flexFloat64 `json:"estimate"`
	} `json:"earnings"`
}

// GetEarnings returns reported quarters with consensus estimates, oldest first
func (c *Client) GetEarnings(ctx context.Context, ticker string, from, to time.Time) ([]models.EarningsEvent, error) {
	params := url.Values{}
	params.Set("symbols", c.symbol(ticker))
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	var resp earningsCalendarResponse
	if err := c.get(ctx, "/calendar/earnings", params, &resp); err != nil {
		return nil, err
	}

	events := make([]models.EarningsEvent, 0, len(resp.Earnings))
	for _, e := range resp.Earnings {
		reportDate, err := time.Parse("2006-01-02", e.ReportDate)
		if err != nil {
			continue
		}
		periodEnd, _ := time.Parse("2006-01-02", e.Date)
		events = append(events, models.EarningsEvent{
			ReportDate: reportDate,
			PeriodEnd:  periodEnd,
			Actual:     e.Actual.ptr(false),
			Estimate:   e.Estimate.ptr(false),
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].ReportDate.Before(events[j].ReportDate)
	})

	return events, nil
}

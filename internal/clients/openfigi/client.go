// Package openfigi provides a client for the OpenFIGI mapping API, used to
// resolve CUSIPs to exchange tickers in batches.
package openfigi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
)

const (
	DefaultBaseURL           = "https://api.openfigi.com/v3"
	DefaultTimeout           = 20 * time.Second
	DefaultRequestsPerMinute = 20
	MaxJobsPerRequest        = 100
)

// Client implements the IdentifierMapper interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

var _ interfaces.IdentifierMapper = (*Client)(nil)

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

// WithRequestsPerMinute sets the rate limit. OpenFIGI allows 25 per
// minute without a key.
func WithRequestsPerMinute(n int) ClientOption {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new OpenFIGI client. apiKey may be empty.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
	}
	WithRequestsPerMinute(DefaultRequestsPerMinute)(c)

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openfigi",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
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
	return fmt.Sprintf("OpenFIGI API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type mappingJob struct {
	IDType  string `json:"idType"`
	IDValue string `json:"idValue"`
}

type mappingInstrument struct {
	FIGI         string `json:"figi"`
	Ticker       string `json:"ticker"`
	ExchCode     string `json:"exchCode"`
	SecurityType string `json:"securityType"`
	MarketSector string `json:"marketSector"`
}

type mappingResult struct {
	Data    []mappingInstrument `json:"data"`
	Warning string              `json:"warning"`
	Error   string              `json:"error"`
}

// MapCUSIPs resolves one batch of CUSIPs. CUSIPs without a listing are
// absent from the result. The whole batch fails on any transport or API
// error; callers decide whether to retry.
func (c *Client) MapCUSIPs(ctx context.Context, cusips []string) (map[string]string, error) {
	if len(cusips) == 0 {
		return map[string]string{}, nil
	}
	if len(cusips) > MaxJobsPerRequest {
		return nil, fmt.Errorf("batch of %d exceeds %d jobs per request", len(cusips), MaxJobsPerRequest)
	}

	jobs := make([]mappingJob, len(cusips))
	for i, cusip := range cusips {
		jobs[i] = mappingJob{IDType: "ID_CUSIP", IDValue: cusip}
	}

	var results []mappingResult
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, "/mapping", jobs, &results)
	})
	if err != nil {
		return nil, err
	}
	if len(results) != len(cusips) {
		return nil, fmt.Errorf("mapping returned %d results for %d jobs", len(results), len(cusips))
	}

	out := make(map[string]string, len(cusips))
	for i, r := range results {
		if r.Error != "" {
			c.logger.Debug().Str("cusip", cusips[i]).Str("error", r.Error).Msg("OpenFIGI job error")
			continue
		}
		if ticker := pickTicker(r.Data); ticker != "" {
			out[cusips[i]] = ticker
		}
	}
	return out, nil
}

// pickTicker prefers the US composite listing, then any listing with a ticker.
func pickTicker(data []mappingInstrument) string {
	for _, d := range data {
		if d.ExchCode == "US" && d.Ticker != "" {
			return d.Ticker
		}
	}
	for _, d := range data {
		if d.Ticker != "" {
			return d.Ticker
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-OPENFIGI-APIKEY", c.apiKey)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("OpenFIGI API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Package secindex loads the SEC company tickers file, which maps issuer
// names to exchange tickers.
package secindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

const (
	DefaultTickersURL = "https://www.sec.gov/files/company_tickers.json"
	DefaultTimeout    = 15 * time.Second
)

// Client implements the CompanyIndexClient interface
type Client struct {
	tickersURL string
	userAgent  string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.CompanyIndexClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithTickersURL sets the company tickers file location
func WithTickersURL(u string) ClientOption {
	return func(c *Client) {
		c.tickersURL = u
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new SEC index client. The SEC rejects requests
// without a descriptive User-Agent.
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		tickersURL: DefaultTickersURL,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
		// fair access policy: at most 10 requests per second
		limiter: rate.NewLimiter(rate.Limit(10), 1),
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
	return fmt.Sprintf("SEC API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// GetCompanyTickers downloads the full company index.
func (c *Client) GetCompanyTickers(ctx context.Context) ([]models.CompanyTicker, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tickersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.tickersURL).Msg("SEC company index request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   c.tickersURL,
		}
	}

	// The file is an object keyed by row number
	var raw map[string]models.CompanyTicker
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := make([]models.CompanyTicker, 0, len(raw))
	for _, row := range raw {
		if row.Ticker == "" || row.Title == "" {
			continue
		}
		out = append(out, row)
	}

	c.logger.Info().Int("companies", len(out)).Msg("SEC company index loaded")
	return out, nil
}

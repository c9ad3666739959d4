// Package gemini provides a client for the Google Gemini API, used as the
// secondary enrichment provider for ESG scores.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

const DefaultModel = "gemini-2.0-flash"

// Client implements the ESGProvider interface
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

var _ interfaces.ESGProvider = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

const esgPrompt = `Return the most recent published ESG risk scores for the US-listed company %s (%s).
Respond with a single JSON object with numeric fields "total", "environmental", "social" and "governance".
Use null for any score you do not know. Do not guess.`

// GetESGScores asks the model for the company's ESG scores. Unknown scores
// come back nil.
func (c *Client) GetESGScores(ctx context.Context, ticker, name string) (*models.ESGScores, error) {
	c.logger.Debug().Str("model", c.model).Str("ticker", ticker).Msg("Requesting ESG scores")

	contents := genai.Text(fmt.Sprintf(esgPrompt, name, ticker))
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ESG scores: %w", err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, err
	}
	return parseESGResponse(text)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in generated content")
	}
	return sb.String(), nil
}

// parseESGResponse decodes the model's JSON, tolerating a fenced code block.
func parseESGResponse(text string) (*models.ESGScores, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var scores models.ESGScores
	if err := json.Unmarshal([]byte(text), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse ESG response: %w", err)
	}
	for _, v := range []*float64{scores.Total, scores.Environmental, scores.Social, scores.Governance} {
		if v != nil && (*v < 0 || *v > 100) {
			return nil, fmt.Errorf("ESG score %.2f out of range", *v)
		}
	}
	if scores.Total == nil && scores.Environmental == nil && scores.Social == nil && scores.Governance == nil {
		return nil, fmt.Errorf("no ESG scores available")
	}
	return &scores, nil
}

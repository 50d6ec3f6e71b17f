// Package huggingface provides a chat-completions client for the Hugging
// Face router API. Generate never fails: requests are retried with backoff
// and exhaustion degrades to canned rule-based text, so callers always get
// a response to work with.
package huggingface

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/cadence/ai/tracker"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/internal/httpclient"
)

const (
	// DefaultModel is the fallback model when none is specified
	// Should match the default in config/defaults.go for consistency
	DefaultModel = "meta-llama/Llama-3.1-8B-Instruct"

	// DefaultBaseURL is the OpenAI-compatible Hugging Face router endpoint
	DefaultBaseURL = "https://router.huggingface.co/v1"

	// DefaultMaxRetries is the number of attempts before degrading to
	// fallback text
	DefaultMaxRetries = 3

	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 30 * time.Second
)

// Retry pacing. Vars rather than consts so tests can shrink them.
var (
	// modelLoadingCooldown is how long to wait when the router reports
	// the model is still loading (HTTP 503) before trying again
	modelLoadingCooldown = 10 * time.Second

	// retryBackoffBase scales the exponential backoff between attempts
	// (base, 2x base, 4x base, ...)
	retryBackoffBase = time.Second
)

// Client is a Hugging Face router API client
type Client struct {
	apiToken     string
	baseURL      string
	model        string
	maxRetries   int
	enabled      bool
	httpClient   *httpclient.SaferClient
	limiter      *rate.Limiter
	config       Config
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// Config holds completion client configuration
type Config struct {
	APIToken          string
	Model             string
	BaseURL           string
	MaxRetries        int
	Timeout           time.Duration
	Temperature       *float64           // nil = use default (0.3)
	MaxTokens         *int               // nil = use default (500)
	RequestsPerMinute int                // Outbound rate limit (0 = unlimited)
	Logger            *zap.SugaredLogger // Structured logger (nil = nop logger)
	DB                *sql.DB            // Database for automatic cost/usage tracking (strongly recommended)
	OperationType     string             // Default operation type for usage rows (e.g., "qualification")
	EntityType        string             // Default entity type for usage rows (e.g., "lead")
	EntityID          string             // Default entity ID for usage rows
}

// NewClient creates a Hugging Face router client. A client without a real
// API token is permanently disabled and serves fallback text only.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == nil {
		defaultTemp := 0.3
		cfg.Temperature = &defaultTemp
	}
	if cfg.MaxTokens == nil {
		defaultTokens := 500
		cfg.MaxTokens = &defaultTokens
	}

	// Initialize usage tracker if database is provided
	var usageTracker *tracker.UsageTracker
	if cfg.DB != nil {
		usageTracker = tracker.NewUsageTracker(cfg.DB, cfg.Logger)
	}

	// Initialize logger (nop if not provided)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// Outbound rate limit, spaced evenly across the minute
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	// Create SSRF-safer HTTP client with redirect protection
	// Blocks private IPs, localhost, AWS metadata endpoint, dangerous schemes
	blockPrivateIP := true
	saferClient := httpclient.NewSaferClientWithOptions(cfg.Timeout, httpclient.SaferClientOptions{
		BlockPrivateIP: &blockPrivateIP,
	})

	enabled := cfg.APIToken != "" && cfg.APIToken != config.PlaceholderAPIToken
	if enabled {
		logger.Infow("Hugging Face client initialized", "model", cfg.Model)
	} else {
		logger.Warnw("Hugging Face API token not configured, LLM features limited to rule-based fallbacks")
	}

	return &Client{
		apiToken:     cfg.APIToken,
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		maxRetries:   cfg.MaxRetries,
		enabled:      enabled,
		httpClient:   saferClient,
		limiter:      limiter,
		config:       cfg,
		usageTracker: usageTracker,
		logger:       logger,
	}
}

// NewClientFromConfig builds a client from the application configuration.
// The database enables usage tracking and may be nil.
func NewClientFromConfig(cfg *config.Config, logger *zap.SugaredLogger, db *sql.DB) *Client {
	hf := cfg.HuggingFace
	return NewClient(Config{
		APIToken:          hf.APIToken,
		Model:             hf.Model,
		BaseURL:           hf.BaseURL,
		MaxRetries:        hf.MaxRetries,
		Timeout:           time.Duration(hf.TimeoutSeconds) * time.Second,
		RequestsPerMinute: hf.MaxRequestsPerMinute,
		Logger:            logger,
		DB:                db,
	})
}

// attributionFrom resolves usage attribution for a request: context values
// set via tracker.WithAttribution win, then the client's configured defaults
func (c *Client) attributionFrom(ctx context.Context) tracker.Attribution {
	if a, ok := tracker.AttributionFrom(ctx); ok {
		return a
	}
	return tracker.Attribution{
		OperationType: c.config.OperationType,
		EntityType:    c.config.EntityType,
		EntityID:      c.config.EntityID,
	}
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is a non-2xx response from the router
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// CreateChatCompletion sends a chat completion request to the router
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Generate produces completion text for the prompt. It retries transient
// failures and degrades to fallback text rather than failing, so the
// returned string is always usable. Non-positive maxTokens or temperature
// select the client defaults. The result may be empty when the model
// itself returns empty content.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) string {
	if !c.enabled {
		c.logger.Debugw("LLM client disabled, using fallback response")
		return fallbackText(prompt)
	}

	if maxTokens <= 0 {
		maxTokens = *c.config.MaxTokens
	}
	if temperature <= 0 {
		temperature = *c.config.Temperature
	}

	req := ChatCompletionRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	requestTime := time.Now().UTC()
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		c.logger.Debugw("LLM request attempt",
			"attempt", attempt+1, "max_retries", c.maxRetries, "model", c.model)

		resp, err := c.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = errors.Newf("no choices in completion response %s", resp.ID)
				c.logger.Errorw("Unexpected completion response format",
					"model", c.model, "response_id", resp.ID)
				continue
			}

			content := strings.TrimSpace(resp.Choices[0].Message.Content)
			c.trackSuccess(ctx, requestTime, maxTokens, temperature, resp)
			return content
		}

		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
			// Router is still loading the model; fixed cooldown, not backoff
			c.logger.Infow("Model loading, waiting before retry",
				"model", c.model, "cooldown", modelLoadingCooldown)
			time.Sleep(modelLoadingCooldown)
			continue
		}

		c.logger.Warnw("LLM request failed",
			"attempt", attempt+1, "max_retries", c.maxRetries, "error", err)

		if attempt < c.maxRetries-1 {
			time.Sleep(time.Duration(1<<attempt) * retryBackoffBase)
		}
	}

	c.logger.Warnw("All LLM attempts failed, using fallback",
		"max_retries", c.maxRetries, "error", lastErr)
	c.trackFailure(ctx, requestTime, maxTokens, temperature, lastErr)
	return fallbackText(prompt)
}

// trackSuccess records a successful completion with its token cost
func (c *Client) trackSuccess(ctx context.Context, requestTime time.Time, maxTokens int, temperature float64, resp *ChatCompletionResponse) {
	if c.usageTracker == nil {
		return
	}

	responseTime := time.Now().UTC()
	tokensUsed := resp.Usage.TotalTokens
	cost := CalculateCost(c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	attr := c.attributionFrom(ctx)

	usage := &tracker.ModelUsage{
		OperationType:     attr.OperationType,
		EntityType:        attr.EntityType,
		EntityID:          attr.EntityID,
		ModelName:         c.model,
		ModelProvider:     "huggingface",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		TokensUsed:        &tokensUsed,
		Cost:              &cost,
		Success:           true,
	}

	if err := c.usageTracker.TrackUsage(usage); err != nil {
		// Always log tracking errors (budget enforcement relies on this data)
		c.logger.Warnw("Failed to track usage", "error", err, "model", c.model, "tokens", tokensUsed)
	}
}

// trackFailure records an exhausted completion attempt
func (c *Client) trackFailure(ctx context.Context, requestTime time.Time, maxTokens int, temperature float64, err error) {
	if c.usageTracker == nil {
		return
	}

	responseTime := time.Now().UTC()
	errMsg := "all attempts failed"
	if err != nil {
		errMsg = err.Error()
	}
	attr := c.attributionFrom(ctx)

	usage := &tracker.ModelUsage{
		OperationType:     attr.OperationType,
		EntityType:        attr.EntityType,
		EntityID:          attr.EntityID,
		ModelName:         c.model,
		ModelProvider:     "huggingface",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           false,
		ErrorMessage:      &errMsg,
	}

	if trackErr := c.usageTracker.TrackUsage(usage); trackErr != nil {
		// Always log tracking errors (budget enforcement relies on this data)
		c.logger.Warnw("Failed to track failed request", "error", trackErr, "model", c.model, "original_error", errMsg)
	}
}

// fallbackText returns a canned response matched to the prompt's intent.
// Used when the API is unreachable or the client has no credentials.
func fallbackText(prompt string) string {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "qualify") || strings.Contains(lower, "score"):
		return `Based on the provided information:
- Company size and industry are good fit
- Contact information is complete
- Engagement signals are positive
Qualification Score: 75/100
Recommendation: QUALIFIED - Proceed with outreach`

	case strings.Contains(lower, "email") || strings.Contains(lower, "message"):
		return `Subject: Quick question about [topic]

Hi [Name],

I noticed [company] is [relevant observation]. We've helped similar companies in [industry] achieve [specific benefit].

Would you be open to a brief call next week to explore if this could be valuable for your team?

Best regards`

	default:
		return "Analysis complete. Proceeding with standard workflow."
	}
}

// IsConfigured returns true if the client has a real API token
func (c *Client) IsConfigured() bool {
	return c.enabled
}

// Model returns the model requests are sent to
func (c *Client) Model() string {
	return c.model
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

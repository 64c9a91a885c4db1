// Package providers contains the chapter generators the batch service
// can be wired with: a real OpenAI-backed writer and a mock for tests.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/quill/internal/batch"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI chapter generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string  // "gpt-4o" (default)
	Temperature float64 // 0 uses the API default
	MaxTokens   int     // Completion token cap, 0 = no cap
	RateLimit   int     // Requests per minute
	MaxRetries  int     // Transport-level retry attempts
	RetryDelay  time.Duration
	Timeout     time.Duration // Per-request HTTP timeout
	BaseURL     string        // Optional (tests)
	HTTPClient  *http.Client  // Optional (tests)
}

// OpenAIGenerator drafts chapters via the OpenAI chat completions API.
// Transport-level hiccups (rate limits, 5xx, empty choices) are retried
// here; the batch service's retry budget only sees errors that survive
// these attempts.
type OpenAIGenerator struct {
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	rateLimiter *RateLimiter
	client      openai.Client
}

// NewOpenAIGenerator creates a generator from config, applying the same
// defaults the API surface expects.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// SDK-internal retries disabled; retry policy lives below where
		// it is visible and rate-limit aware.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		rateLimiter: NewRateLimiter(cfg.RateLimit),
		client:      openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (g *OpenAIGenerator) Name() string {
	return OpenAIName
}

// RateLimiterStatus returns the current limiter state.
func (g *OpenAIGenerator) RateLimiterStatus() RateLimiterStatus {
	return g.rateLimiter.Status()
}

// GenerateChapter drafts one chapter from the request.
func (g *OpenAIGenerator) GenerateChapter(ctx context.Context, req batch.Request) (string, error) {
	system, user, err := buildChapterPrompt(req)
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}

	var text string
	err = retry.Do(
		func() error {
			if err := g.rateLimiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := g.client.Chat.Completions.New(ctx, params)
			if err != nil {
				mapped := mapOpenAIError(err)
				if !isTransient(err) {
					return retry.Unrecoverable(mapped)
				}
				return mapped
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return fmt.Errorf("openai returned no content for chapter %d", req.ChapterNumber)
			}
			text = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.maxRetries)),
		retry.Delay(g.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// isTransient reports whether an API error is worth retrying at the
// transport level: rate limits and server-side failures.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// Network-level errors (timeouts, resets) have no status code.
	return true
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("openai chat error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openai chat error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ batch.Generator = (*OpenAIGenerator)(nil)

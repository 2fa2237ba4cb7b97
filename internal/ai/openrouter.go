package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/GustavoLR548/news-relay-bot/internal/ratelimit"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenRouterBaseURL is the OpenAI-compatible OpenRouter API root.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig configures an OpenRouterRewriter.
type OpenRouterConfig struct {
	Token   string
	BaseURL string
	Model   string
	Prompt  string
	Limits  ratelimit.Config
	Log     *zap.SugaredLogger
}

// OpenRouterRewriter implements Rewriter with a chat completion request.
type OpenRouterRewriter struct {
	client      *openai.Client
	model       string
	prompt      string
	rateLimiter *ratelimit.Manager
	log         *zap.SugaredLogger
}

// NewOpenRouterRewriter creates a rewriter. Token, model and prompt are required.
func NewOpenRouterRewriter(cfg OpenRouterConfig) (*OpenRouterRewriter, error) {
	switch {
	case cfg.Token == "":
		return nil, fmt.Errorf("OpenRouter token is required")
	case cfg.Model == "":
		return nil, fmt.Errorf("LLM model is required")
	case cfg.Prompt == "":
		return nil, fmt.Errorf("prompt is required")
	}

	clientCfg := openai.DefaultConfig(cfg.Token)
	clientCfg.BaseURL = DefaultOpenRouterBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenRouterRewriter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		prompt:      cfg.Prompt,
		rateLimiter: ratelimit.NewManager(cfg.Limits),
		log:         logger.OrNop(cfg.Log),
	}, nil
}

// Rewrite sends prompt + caption and returns the cleaned first choice.
func (r *OpenRouterRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text provided")
	}

	prompt := BuildPrompt(r.prompt, text)
	r.log.Debugf("Sending rewrite request (model: %s, input length: %d chars)", r.model, len(text))

	var content string
	err := r.rateLimiter.Do(ctx, retryableOpenAI, func(ctx context.Context) error {
		var attemptErr error
		content, attemptErr = r.attempt(ctx, prompt)
		if attemptErr != nil {
			r.log.Warnf("Rewrite attempt failed: %v", attemptErr)
		}
		return attemptErr
	})
	if err != nil {
		return "", fmt.Errorf("rewrite request failed: %w", err)
	}

	return StripWrappers(content), nil
}

func (r *OpenRouterRewriter) attempt(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	r.log.Debugf("OpenRouter responded in %v", time.Since(startTime))

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// GetRateLimitStatistics returns current rate limiting statistics
func (r *OpenRouterRewriter) GetRateLimitStatistics() ratelimit.Statistics {
	return r.rateLimiter.GetStatistics()
}

// retryableOpenAI classifies typed API errors by status and falls back to ShouldRetry.
func retryableOpenAI(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	return ShouldRetry(err)
}

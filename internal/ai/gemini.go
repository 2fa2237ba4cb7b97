package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/GustavoLR548/news-relay-bot/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures a GeminiRewriter.
type GeminiConfig struct {
	APIKey string
	Model  string
	Prompt string
	Limits ratelimit.Config
	Log    *zap.SugaredLogger
}

// GeminiRewriter implements Rewriter using Google's Gemini API
type GeminiRewriter struct {
	apiKey      string
	model       string
	prompt      string
	rateLimiter *ratelimit.Manager
	log         *zap.SugaredLogger
}

// NewGeminiRewriter creates a Gemini-based rewriter
func NewGeminiRewriter(cfg GeminiConfig) (*GeminiRewriter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiRewriter{
		apiKey:      cfg.APIKey,
		model:       model,
		prompt:      cfg.Prompt,
		rateLimiter: ratelimit.NewManager(cfg.Limits),
		log:         logger.OrNop(cfg.Log),
	}, nil
}

// ListAvailableModels returns available Gemini models (for debugging)
func (g *GeminiRewriter) ListAvailableModels(ctx context.Context) ([]string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	var models []string
	iter := client.ListModels(ctx)
	for {
		model, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return models, fmt.Errorf("failed to list models: %w", err)
		}
		models = append(models, model.Name)
	}
	return models, nil
}

// Rewrite sends prompt + caption to Gemini with rate limiting and retries
func (g *GeminiRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text provided")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)

	prompt := BuildPrompt(g.prompt, text)

	var content string
	err = g.rateLimiter.Do(ctx, ShouldRetry, func(ctx context.Context) error {
		g.log.Debugf("Sending request to Gemini API (model: %s)", g.model)

		startTime := time.Now()
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			g.log.Warnf("Gemini API error after %v: %v", time.Since(startTime), err)
			return fmt.Errorf("API request failed: %w", err)
		}

		content, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("rewrite request failed: %w", err)
	}

	return StripWrappers(content), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GetRateLimitStatistics returns current rate limiting statistics
func (g *GeminiRewriter) GetRateLimitStatistics() ratelimit.Statistics {
	return g.rateLimiter.GetStatistics()
}

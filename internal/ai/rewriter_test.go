package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRewriter is a mock implementation of Rewriter for testing
type MockRewriter struct {
	RewriteFunc func(ctx context.Context, text string) (string, error)
}

func (m *MockRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	if m.RewriteFunc != nil {
		return m.RewriteFunc(ctx, text)
	}
	return "", fmt.Errorf("not implemented")
}

func TestRewriterInterface_Compliance(t *testing.T) {
	var _ Rewriter = (*MockRewriter)(nil)
	var _ Rewriter = Passthrough{}
	var _ Rewriter = (*OpenRouterRewriter)(nil)
	var _ Rewriter = (*GeminiRewriter)(nil)
}

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Rewrite(context.Background(), "<b>X</b>")
	require.NoError(t, err)
	assert.Equal(t, "<b>X</b>", out)
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "Rewrite this:\n\n<b>X</b>", BuildPrompt("Rewrite this:", "<b>X</b>"))
}

func TestStripWrappers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain text untouched", input: "<b>X</b>\n\nBody", expected: "<b>X</b>\n\nBody"},
		{name: "boxed wrapper", input: "\\boxed{<b>X</b>}", expected: "<b>X</b>"},
		{name: "boxed wrapper with trailing space", input: "\\boxed{line one\nline two}  \n", expected: "line one\nline two"},
		{name: "html fence", input: "```html\n<b>X</b>\n```", expected: "<b>X</b>"},
		{name: "bare fence", input: "```\n<b>X</b>\n```", expected: "<b>X</b>"},
		{name: "upper case fence tag", input: "```HTML\n<b>X</b>```", expected: "<b>X</b>"},
		{name: "leading html token", input: "html\n<b>X</b>", expected: "<b>X</b>"},
		{name: "boxed fence", input: "\\boxed{```html\n<b>X</b>\n```}", expected: "<b>X</b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripWrappers(tt.input))
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit error", err: errors.New("error 429: rate limit exceeded"), expected: true},
		{name: "service unavailable", err: errors.New("error 503: service unavailable"), expected: true},
		{name: "timeout error", err: errors.New("request timeout"), expected: true},
		{name: "deadline exceeded", err: errors.New("context deadline exceeded"), expected: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), expected: true},
		{name: "bad request", err: errors.New("error 400: bad request"), expected: false},
		{name: "unauthorized", err: errors.New("error 401: unauthorized"), expected: false},
		{name: "invalid input", err: errors.New("invalid API key"), expected: false},
		{name: "empty response", err: fmt.Errorf("wrapped: %w", ErrEmptyResponse), expected: false},
		{name: "cancelled", err: context.Canceled, expected: false},
		{name: "unknown error", err: errors.New("something went wrong"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldRetry(tt.err))
		})
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string) string {
	return fmt.Sprintf(`{"id":"gen-1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func testLimits() ratelimit.Config {
	limits := ratelimit.DefaultConfig()
	limits.RetryBackoffBase = time.Millisecond
	return limits
}

func TestOpenRouterRewriter_Rewrite(t *testing.T) {
	tests := []struct {
		name          string
		responses     []func(w http.ResponseWriter)
		expectCalls   int32
		expected      string
		expectError   bool
		errorContains string
		errorIs       error
	}{
		{
			name: "returns cleaned first choice",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) { fmt.Fprint(w, chatResponse("```html\n<b>Y</b>\n```")) },
			},
			expectCalls: 1,
			expected:    "<b>Y</b>",
		},
		{
			name: "retries server errors",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) {
					w.WriteHeader(http.StatusServiceUnavailable)
					fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
				},
				func(w http.ResponseWriter) { fmt.Fprint(w, chatResponse("<b>Z</b>")) },
			},
			expectCalls: 2,
			expected:    "<b>Z</b>",
		},
		{
			name: "auth errors are not retried",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) {
					w.WriteHeader(http.StatusUnauthorized)
					fmt.Fprint(w, `{"error":{"message":"No auth credentials found","type":"auth_error"}}`)
				},
			},
			expectCalls:   1,
			expectError:   true,
			errorContains: "rewrite request failed",
		},
		{
			name: "empty choices",
			responses: []func(w http.ResponseWriter){
				func(w http.ResponseWriter) {
					fmt.Fprint(w, `{"id":"gen-1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
				},
			},
			expectCalls: 1,
			expectError: true,
			errorIs:     ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			var mu sync.Mutex
			var lastPrompt, lastModel, lastAuth string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/chat/completions" {
					http.NotFound(w, r)
					return
				}
				n := atomic.AddInt32(&calls, 1)

				var req chatRequest
				mu.Lock()
				if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
					lastPrompt = req.Messages[0].Content
					lastModel = req.Model
				}
				lastAuth = r.Header.Get("Authorization")
				mu.Unlock()

				w.Header().Set("Content-Type", "application/json")
				idx := int(n) - 1
				if idx >= len(tt.responses) {
					idx = len(tt.responses) - 1
				}
				tt.responses[idx](w)
			}))
			defer server.Close()

			rewriter, err := NewOpenRouterRewriter(OpenRouterConfig{
				Token:   "secret",
				BaseURL: server.URL,
				Model:   "test/model",
				Prompt:  "Rewrite:",
				Limits:  testLimits(),
			})
			require.NoError(t, err)

			out, err := rewriter.Rewrite(context.Background(), "<b>X</b>")

			assert.Equal(t, tt.expectCalls, atomic.LoadInt32(&calls))
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "Rewrite:\n\n<b>X</b>", lastPrompt)
			assert.Equal(t, "test/model", lastModel)
			assert.Equal(t, "Bearer secret", lastAuth)

			if tt.expectError {
				require.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				if tt.errorIs != nil {
					assert.ErrorIs(t, err, tt.errorIs)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestOpenRouterRewriter_EmptyInput(t *testing.T) {
	rewriter, err := NewOpenRouterRewriter(OpenRouterConfig{Token: "t", Model: "m", Prompt: "p"})
	require.NoError(t, err)

	_, err = rewriter.Rewrite(context.Background(), "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty text provided")
}

func TestNewOpenRouterRewriter_Validation(t *testing.T) {
	tests := []struct {
		name          string
		cfg           OpenRouterConfig
		errorContains string
	}{
		{name: "missing token", cfg: OpenRouterConfig{Model: "m", Prompt: "p"}, errorContains: "token"},
		{name: "missing model", cfg: OpenRouterConfig{Token: "t", Prompt: "p"}, errorContains: "model"},
		{name: "missing prompt", cfg: OpenRouterConfig{Token: "t", Model: "m"}, errorContains: "prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpenRouterRewriter(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestGeminiRewriter_Configuration(t *testing.T) {
	_, err := NewGeminiRewriter(GeminiConfig{})
	require.Error(t, err)

	rewriter, err := NewGeminiRewriter(GeminiConfig{APIKey: "key", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, rewriter.model)
	assert.Equal(t, 0, rewriter.GetRateLimitStatistics().CurrentWindowRequests)

	_, err = rewriter.Rewrite(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty text provided")
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name        string
		resp        *genai.GenerateContentResponse
		expected    string
		expectError bool
	}{
		{name: "nil response", resp: nil, expectError: true},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, expectError: true},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("<b>X</b>"), genai.Text(" body ")}},
			}}},
			expected: "<b>X</b> body",
		},
		{
			name: "blank text",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}},
			}}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := responseText(tt.resp)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrEmptyResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, text)
		})
	}
}

package ai

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyResponse is returned when the model answers without usable text.
var ErrEmptyResponse = errors.New("empty or invalid response from model")

// Rewriter rewrites a prepared caption with a language model.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// Passthrough returns the caption unchanged. Used when rewriting is disabled.
type Passthrough struct{}

func (Passthrough) Rewrite(ctx context.Context, text string) (string, error) {
	return text, nil
}

// BuildPrompt joins the instruction block and the caption into one user message.
func BuildPrompt(template, input string) string {
	return template + "\n\n" + input
}

var (
	boxedWrapper = regexp.MustCompile(`(?s)^\\boxed\{(.*)\}\s*$`)
	fenceOpen    = regexp.MustCompile("(?i)^\\s*```(?:html)?\\s*")
	fenceClose   = regexp.MustCompile("\\s*```$")
	htmlToken    = regexp.MustCompile(`(?i)^html\s*`)
)

// StripWrappers removes decorations models put around the answer, in order:
// a \boxed{...} wrapper, a fenced code block (optionally tagged html) and a
// bare leading "html" token.
func StripWrappers(text string) string {
	result := boxedWrapper.ReplaceAllString(text, "$1")

	result = fenceOpen.ReplaceAllString(result, "")
	result = fenceClose.ReplaceAllString(result, "")
	result = strings.TrimSpace(result)

	result = htmlToken.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// ShouldRetry determines if an error is retryable
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Retryable errors (temporary issues)
	retryableErrors := []string{
		"429",               // Rate limit
		"500",               // Internal error
		"502",               // Bad gateway
		"503",               // Service unavailable
		"504",               // Gateway timeout
		"timeout",           // Timeout
		"deadline exceeded", // Context deadline
		"temporary",         // Temporary network issues
		"connection reset",  // Connection issues
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	// Non-retryable errors (permanent failures)
	nonRetryableErrors := []string{
		"400",     // Bad request
		"401",     // Unauthorized
		"402",     // Out of credits
		"403",     // Forbidden
		"404",     // Not found
		"invalid", // Invalid input
	}

	for _, nonRetryable := range nonRetryableErrors {
		if strings.Contains(errStr, nonRetryable) {
			return false
		}
	}

	// Default: retry on unknown errors
	return true
}

// Package llm wraps the text-generation services used for ranking and
// refinement behind one small interface.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Request is a single prompt/response exchange.
type Request struct {
	System    string
	Prompt    string
	JSON      bool // ask the provider for a JSON object response
	MaxTokens int
}

// Generator produces text for a prompt. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Sampling settings shared by every provider so that identical input gives
// identical output where the backend honours them.
const (
	Temperature = 0
	Seed        = 42
)

const defaultMaxTokens = 1024

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

var (
	thinkRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeBlockRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Clean strips reasoning preambles and a surrounding code fence from model
// output.
func Clean(s string) string {
	s = thinkRe.ReplaceAllString(s, "")
	// An unterminated think block swallows everything after it.
	if i := strings.Index(s, "<think>"); i >= 0 {
		s = s[:i]
	}
	return stripCodeBlock(s)
}

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

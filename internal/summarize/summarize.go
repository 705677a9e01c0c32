// Package summarize turns an extracted window into a short, persona-focused
// paragraph.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/sectionrank/internal/chunker"
	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/section"
)

// ErrRefinementFailure means the model call failed or returned nothing; the
// raw window text stands in for the summary.
var ErrRefinementFailure = errors.New("refinement failed")

const systemPrompt = `You rewrite extracted document text into one cohesive paragraph for a specific reader. Keep concrete names, numbers, and instructions. Do not add facts that are not in the text. Reply with the paragraph only.`

// DefaultMaxInputTokens bounds the window text sent to the model.
const DefaultMaxInputTokens = 512

// Brief is the collection context every summary is written for.
type Brief struct {
	Persona string
	Job     string
}

// Summarizer refines windows with a text-generation model.
type Summarizer struct {
	Gen            llm.Generator
	Timeout        time.Duration
	MaxInputTokens int
	MaxTokens      int
}

// Summarize returns the refined text. An empty window yields an empty
// summary without calling the model. On failure the raw text is returned
// together with an error wrapping ErrRefinementFailure.
func (s *Summarizer) Summarize(ctx context.Context, brief Brief, win section.Window) (string, error) {
	raw := strings.TrimSpace(win.RawText)
	if raw == "" {
		return "", nil
	}

	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	out, err := s.Gen.Generate(callCtx, s.request(brief, win, raw))
	if err != nil {
		return raw, fmt.Errorf("%w: %v", ErrRefinementFailure, err)
	}
	out = strings.TrimSpace(llm.Clean(out))
	if out == "" {
		return raw, fmt.Errorf("%w: empty model output", ErrRefinementFailure)
	}
	return out, nil
}

func (s *Summarizer) request(brief Brief, win section.Window, raw string) llm.Request {
	budget := s.MaxInputTokens
	if budget <= 0 {
		budget = DefaultMaxInputTokens
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reader: %s\n", brief.Persona)
	fmt.Fprintf(&sb, "Task: %s\n", brief.Job)
	fmt.Fprintf(&sb, "Section %q from %s (page %d):\n---\n", win.HeadingText, win.DocumentID, win.PageNumber)
	sb.WriteString(chunker.Fit(raw, budget))
	sb.WriteString("\n---\nRewrite the section text above as one paragraph that serves this reader's task.")

	return llm.Request{
		System:    systemPrompt,
		Prompt:    sb.String(),
		MaxTokens: s.MaxTokens,
	}
}

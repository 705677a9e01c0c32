package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/section"
)

type fakeGen struct {
	out   string
	err   error
	block bool
	calls int
	last  llm.Request
}

func (f *fakeGen) Model() string { return "fake" }

func (f *fakeGen) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

var brief = Brief{Persona: "HR professional", Job: "Create fillable onboarding forms"}

func window(text string) section.Window {
	return section.Window{DocumentID: "forms.pdf", HeadingText: "Fill and Sign", PageNumber: 4, RawText: text}
}

func TestSummarize_Success(t *testing.T) {
	gen := &fakeGen{out: "<think>ok</think>\nUse Fill & Sign to add fields."}
	s := &Summarizer{Gen: gen}

	got, err := s.Summarize(context.Background(), brief, window("Open the PDF.\nChoose Fill & Sign."))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Use Fill & Sign to add fields." {
		t.Errorf("unexpected summary %q", got)
	}
	for _, want := range []string{"HR professional", "Create fillable onboarding forms", `"Fill and Sign"`, "forms.pdf", "page 4", "Choose Fill & Sign."} {
		if !strings.Contains(gen.last.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSummarize_FailureReturnsRawText(t *testing.T) {
	gen := &fakeGen{err: errors.New("model offline")}
	s := &Summarizer{Gen: gen}

	got, err := s.Summarize(context.Background(), brief, window("  raw window text  "))
	if !errors.Is(err, ErrRefinementFailure) {
		t.Fatalf("expected ErrRefinementFailure, got %v", err)
	}
	if got != "raw window text" {
		t.Errorf("expected raw text fallback, got %q", got)
	}
}

func TestSummarize_EmptyOutputFallsBack(t *testing.T) {
	s := &Summarizer{Gen: &fakeGen{out: "<think>nothing to say</think>"}}
	got, err := s.Summarize(context.Background(), brief, window("raw"))
	if !errors.Is(err, ErrRefinementFailure) || got != "raw" {
		t.Fatalf("expected raw fallback with ErrRefinementFailure, got %q %v", got, err)
	}
}

func TestSummarize_Timeout(t *testing.T) {
	s := &Summarizer{Gen: &fakeGen{block: true}, Timeout: 10 * time.Millisecond}
	got, err := s.Summarize(context.Background(), brief, window("raw"))
	if !errors.Is(err, ErrRefinementFailure) || got != "raw" {
		t.Fatalf("expected timeout to fall back to raw text, got %q %v", got, err)
	}
}

func TestSummarize_EmptyWindowSkipsModel(t *testing.T) {
	gen := &fakeGen{out: "should not be used"}
	s := &Summarizer{Gen: gen}
	got, err := s.Summarize(context.Background(), brief, window(""))
	if err != nil || got != "" {
		t.Fatalf("expected empty summary without error, got %q %v", got, err)
	}
	if gen.calls != 0 {
		t.Error("model must not be called for an empty window")
	}
}

func TestSummarize_InputBounded(t *testing.T) {
	gen := &fakeGen{out: "short"}
	s := &Summarizer{Gen: gen, MaxInputTokens: 20}
	long := strings.Repeat("Sentence with four words. ", 100)

	if _, err := s.Summarize(context.Background(), brief, window(long)); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if strings.Count(gen.last.Prompt, "Sentence with four words.") > 4 {
		t.Errorf("expected window trimmed to the token budget, prompt was %d bytes", len(gen.last.Prompt))
	}
}

package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/metrics"
	"github.com/dgallion1/sectionrank/internal/section"
)

// Result sources.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// errNoValidProposals means the response parsed but nothing survived
// validation; it is retried like an unparsable response.
var errNoValidProposals = errors.New("no valid proposals")

// Ranker runs the model call and the selection policy for one collection.
type Ranker struct {
	Gen      llm.Generator
	Timeout  time.Duration // per model call; zero means no limit
	Attempts int           // model calls before falling back; zero means 2
	Policy   FallbackPolicy
	Log      *slog.Logger
}

// Result is the ranker's output plus what happened on the way.
type Result struct {
	Sections    []section.Ranked
	Source      string
	Attempts    int
	Rejected    []Proposal
	Diagnostics []section.Diagnostic
}

// Rank selects up to req.TopN sections. It only returns an error for an
// empty candidate set; model failures end in the deterministic fallback.
func (r *Ranker) Rank(ctx context.Context, req Request) (Result, error) {
	if len(req.Candidates) == 0 {
		metrics.RankingOutcomesTotal.WithLabelValues("empty").Inc()
		return Result{}, ErrEmptyCandidateSet
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 2
	}

	cs := NewCandidateSet(req.Candidates)
	prompt := req.Prompt()
	var res Result

	for attempt := 1; attempt <= attempts && ctx.Err() == nil; attempt++ {
		res.Attempts = attempt
		sections, rejected, err := r.try(ctx, prompt, cs, req)
		for _, p := range rejected {
			log.Warn("discarding hallucinated heading", "document", p.DocumentID, "heading", p.HeadingText, "attempt", attempt)
			metrics.HallucinatedHeadingsTotal.Inc()
			res.Diagnostics = append(res.Diagnostics, section.Diagnostic{
				Stage:      "rank",
				Kind:       section.KindHallucinatedHeading,
				DocumentID: p.DocumentID,
				Heading:    p.HeadingText,
				Detail:     ErrHallucinatedHeading.Error(),
			})
		}
		res.Rejected = append(res.Rejected, rejected...)
		if err == nil {
			res.Sections = sections
			res.Source = SourceModel
			metrics.RankingOutcomesTotal.WithLabelValues(SourceModel).Inc()
			log.Info("ranking complete", "source", SourceModel, "attempt", attempt, "sections", len(sections))
			return res, nil
		}
		log.Warn("ranking attempt failed", "attempt", attempt, "error", err)
		res.Diagnostics = append(res.Diagnostics, section.Diagnostic{
			Stage:  "rank",
			Kind:   section.KindRankingUnparsable,
			Detail: fmt.Sprintf("attempt %d: %v", attempt, err),
		})
	}

	res.Sections = Fallback(cs.Headings(), r.Policy, req.PerDocumentCap, req.TopN)
	res.Source = SourceFallback
	res.Diagnostics = append(res.Diagnostics, section.Diagnostic{
		Stage:  "rank",
		Kind:   section.KindRankingFallback,
		Detail: fmt.Sprintf("deterministic %s ranking after %d attempts", r.policyName(), res.Attempts),
	})
	metrics.RankingOutcomesTotal.WithLabelValues(SourceFallback).Inc()
	log.Warn("ranking fell back", "policy", r.policyName(), "sections", len(res.Sections))
	return res, nil
}

func (r *Ranker) try(ctx context.Context, prompt llm.Request, cs CandidateSet, req Request) ([]section.Ranked, []Proposal, error) {
	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	raw, err := r.Gen.Generate(callCtx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("generate: %w", err)
	}
	proposals, err := Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	valid, rejected := cs.Validate(proposals)
	if len(valid) == 0 {
		return nil, rejected, errNoValidProposals
	}
	return Select(valid, req.PerDocumentCap, req.TopN), rejected, nil
}

func (r *Ranker) policyName() FallbackPolicy {
	if r.Policy == "" {
		return LevelFirst
	}
	return r.Policy
}

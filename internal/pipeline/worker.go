package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dgallion1/sectionrank/internal/collection"
	"github.com/dgallion1/sectionrank/internal/config"
	"github.com/dgallion1/sectionrank/internal/extract"
	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/metrics"
	"github.com/dgallion1/sectionrank/internal/outline"
	"github.com/dgallion1/sectionrank/internal/output"
	"github.com/dgallion1/sectionrank/internal/parser"
	"github.com/dgallion1/sectionrank/internal/rank"
	"github.com/dgallion1/sectionrank/internal/section"
	"github.com/dgallion1/sectionrank/internal/summarize"
)

// Settings are the per-collection knobs passed into every stage.
type Settings struct {
	TopN              int
	PerDocumentCap    int
	WindowLines       int
	OutlineFromSource bool
	Parse             parser.Options
}

// Worker runs the ranking and extraction pipeline for one collection at a
// time.
type Worker struct {
	Ranker      *rank.Ranker
	Summarizer  *summarize.Summarizer
	Coordinator *Coordinator
	Settings    Settings
	Log         *slog.Logger

	// Library is the layout used for HTTP-submitted jobs.
	Library collection.Layout

	// Now stamps results; defaults to time.Now.
	Now func() time.Time
}

// NewWorker builds a Worker from configuration and the two stage models.
func NewWorker(cfg config.Config, rankGen, refineGen llm.Generator, log *slog.Logger) (*Worker, error) {
	policy, err := rank.ParseFallbackPolicy(cfg.FallbackPolicy)
	if err != nil {
		return nil, err
	}
	return &Worker{
		Ranker: &rank.Ranker{
			Gen:     rankGen,
			Timeout: cfg.RankTimeout,
			Policy:  policy,
			Log:     log,
		},
		Summarizer: &summarize.Summarizer{
			Gen:            refineGen,
			Timeout:        cfg.RefineTimeout,
			MaxInputTokens: cfg.RefineMaxInputTokens,
		},
		Coordinator: &Coordinator{
			MaxWorkers:  cfg.MaxWorkers,
			UnitTimeout: cfg.UnitTimeout,
			Log:         log,
		},
		Settings: Settings{
			TopN:              cfg.TopN,
			PerDocumentCap:    cfg.PerDocumentCap,
			WindowLines:       cfg.WindowLines,
			OutlineFromSource: cfg.OutlineFromSource,
			Parse:             parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
		},
		Log: log,
		Library: collection.Layout{
			SourceDir:  cfg.LibraryDir,
			OutlineDir: cfg.OutlineDir,
		},
	}, nil
}

// Run processes a collection and returns its result document. It never
// fails: every degraded outcome is a diagnostic in the result.
func (w *Worker) Run(ctx context.Context, req collection.Request, layout collection.Layout) *output.Document {
	return w.run(ctx, req, layout, nil)
}

// RunLayout reads the collection request from layout and processes it. An
// unreadable or invalid request yields an empty result with one diagnostic.
func (w *Worker) RunLayout(ctx context.Context, layout collection.Layout) *output.Document {
	req, err := collection.ReadRequest(layout.InputPath)
	if err != nil {
		log := w.logger().With("collection", filepath.Base(layout.Dir))
		log.Error("collection request rejected", "error", err)
		return w.finish(output.Metadata{}, nil, nil, []section.Diagnostic{{
			Stage:  "load",
			Kind:   section.KindInvalidRequest,
			Detail: err.Error(),
		}}, time.Now(), log)
	}
	return w.Run(ctx, req, layout)
}

// Process runs a queued job against the library layout.
func (w *Worker) Process(ctx context.Context, job *Job) {
	doc := w.run(ctx, job.Request(), w.Library, job)
	if err := ctx.Err(); err != nil {
		job.AddError(fmt.Sprintf("cancelled: %v", err))
		job.SetStatus(StatusFailed, "cancelled")
		return
	}
	job.SetResult(doc)
}

func (w *Worker) run(ctx context.Context, req collection.Request, layout collection.Layout, job *Job) *output.Document {
	start := time.Now()
	log := w.logger().With("collection", collectionName(req, layout))
	if job != nil {
		log = log.With("job_id", job.ID)
	}
	phase := func(s JobStatus) {
		if job != nil {
			job.SetStatus(s, string(s))
		}
	}

	meta := output.Metadata{
		ChallengeID:    req.ChallengeID,
		InputDocuments: req.DocumentIDs(),
		Persona:        req.Persona,
		JobToBeDone:    req.Job,
	}

	// Outlines
	phase(StatusLoading)
	source := parser.DirSource{Dir: layout.SourceDir, Options: w.Settings.Parse}
	loader := &outline.Loader{
		Dir:        layout.OutlineDir,
		Source:     source,
		FromSource: w.Settings.OutlineFromSource,
		Log:        log,
	}
	store, diags := loader.Load(req.DocumentIDs())
	candidates := store.All()
	if job != nil {
		job.SetCandidates(len(candidates))
	}
	log.Info("outlines loaded", "documents", len(req.Documents), "candidates", len(candidates))

	// Ranking
	phase(StatusRanking)
	rankReq, err := rank.NewRequest(req.Persona, req.Job, candidates, w.Settings.PerDocumentCap, w.topN())
	var res rank.Result
	if err == nil {
		res, err = w.Ranker.Rank(ctx, rankReq)
	}
	if err != nil {
		if errors.Is(err, rank.ErrEmptyCandidateSet) {
			metrics.RankingOutcomesTotal.WithLabelValues("empty").Inc()
			log.Warn("no candidate headings, emitting empty result")
			diags = append(diags, section.Diagnostic{
				Stage:  "rank",
				Kind:   section.KindEmptyCandidateSet,
				Detail: err.Error(),
			})
		} else {
			log.Error("ranking request invalid", "error", err)
			diags = append(diags, section.Diagnostic{Stage: "rank", Kind: section.KindRankingUnparsable, Detail: err.Error()})
		}
		return w.finish(meta, nil, nil, diags, start, log)
	}
	diags = append(diags, res.Diagnostics...)

	resolved, locDiags := store.Resolve(res.Sections, log)
	diags = append(diags, locDiags...)
	if job != nil {
		job.SetSections(len(resolved))
	}

	// Extraction and refinement
	phase(StatusExtracting)
	extractor := &extract.Extractor{Source: source, Lines: w.Settings.WindowLines}
	brief := summarize.Brief{Persona: req.Persona, Job: req.Job}
	units, unitDiags := w.coordinator().Run(ctx, resolved, w.unit(extractor, brief, log))
	diags = append(diags, unitDiags...)

	return w.finish(meta, resolved, units, diags, start, log)
}

// unit extracts and refines one section, turning recoverable failures into a
// degraded unit plus a diagnostic.
func (w *Worker) unit(ex *extract.Extractor, brief summarize.Brief, log *slog.Logger) UnitFunc {
	return func(ctx context.Context, r section.Resolved) Outcome {
		out := Outcome{Unit: section.Summarized{
			ImportanceRank: r.ImportanceRank,
			Status:         section.StatusComplete,
		}}

		win, err := ex.Extract(r)
		out.Unit.Window = win
		if err != nil {
			status, kind := section.StatusExtractionFailed, section.KindExtractionFailed
			if errors.Is(err, extract.ErrExtractionEmpty) {
				status, kind = section.StatusExtractionEmpty, section.KindExtractionEmpty
			}
			log.Warn("extraction degraded", "document", r.DocumentID, "heading", r.HeadingText, "page", r.PageNumber, "error", err)
			out.Unit.Status = status
			out.Diagnostics = append(out.Diagnostics, section.Diagnostic{
				Stage:      "extract",
				Kind:       kind,
				DocumentID: r.DocumentID,
				Heading:    r.HeadingText,
				Detail:     err.Error(),
			})
			return out
		}

		summary, err := w.Summarizer.Summarize(ctx, brief, win)
		out.Unit.Summary = summary
		if err != nil {
			log.Warn("refinement failed, keeping raw text", "document", r.DocumentID, "heading", r.HeadingText, "error", err)
			out.Unit.Status = section.StatusRefinementFailed
			out.Diagnostics = append(out.Diagnostics, section.Diagnostic{
				Stage:      "refine",
				Kind:       section.KindRefinementFailure,
				DocumentID: r.DocumentID,
				Heading:    r.HeadingText,
				Detail:     err.Error(),
			})
		}
		return out
	}
}

func (w *Worker) finish(meta output.Metadata, resolved []section.Resolved, units []section.Summarized, diags []section.Diagnostic, start time.Time, log *slog.Logger) *output.Document {
	doc := output.Assemble(meta, resolved, units, diags)
	doc.Stamp(w.now())
	if err := output.Validate(doc); err != nil {
		log.Error("assembled result failed validation", "error", err)
	}

	result := "complete"
	switch {
	case len(doc.ExtractedSections) == 0:
		result = "empty"
	case len(doc.Diagnostics) > 0:
		result = "degraded"
	}
	metrics.CollectionsTotal.WithLabelValues(result).Inc()
	metrics.CollectionDuration.Observe(time.Since(start).Seconds())
	log.Info("collection processed",
		"result", result,
		"sections", len(doc.ExtractedSections),
		"diagnostics", len(doc.Diagnostics),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return doc
}

func (w *Worker) logger() *slog.Logger {
	if w.Log == nil {
		return slog.Default()
	}
	return w.Log
}

func (w *Worker) coordinator() *Coordinator {
	if w.Coordinator == nil {
		return &Coordinator{Log: w.Log}
	}
	return w.Coordinator
}

func (w *Worker) topN() int {
	if w.Settings.TopN <= 0 {
		return 5
	}
	return w.Settings.TopN
}

func (w *Worker) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func collectionName(req collection.Request, layout collection.Layout) string {
	if req.ChallengeID != "" {
		return req.ChallengeID
	}
	if layout.Dir != "" {
		return filepath.Base(layout.Dir)
	}
	return "library"
}

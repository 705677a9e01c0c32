package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/sectionrank/internal/collection"
	"github.com/dgallion1/sectionrank/internal/config"
	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/output"
	"github.com/dgallion1/sectionrank/internal/pipeline"
)

func runCmd() *cobra.Command {
	var topN, perDocumentCap, lines, workers int

	cmd := &cobra.Command{
		Use:   "run <dir>...",
		Short: "Process every collection directory under the given paths",
		Long: "Each collection directory holds challenge1b_input.json, its documents " +
			"(directly or under PDFs/ or docs/) and optional outlines/<stem>.json files. " +
			"Results are written to challenge1b_output.json in the same directory.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flags := cmd.Flags()
			if flags.Changed("top-n") {
				cfg.TopN = topN
			}
			if flags.Changed("cap") {
				cfg.PerDocumentCap = perDocumentCap
			}
			if flags.Changed("lines") {
				cfg.WindowLines = lines
			}
			if flags.Changed("workers") {
				cfg.MaxWorkers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)

			var layouts []collection.Layout
			for _, dir := range args {
				found, err := collection.FindAll(dir)
				if err != nil {
					return fmt.Errorf("scan %s: %w", dir, err)
				}
				if len(found) == 0 {
					log.Warn("no collections found", "dir", dir)
				}
				layouts = append(layouts, found...)
			}
			if len(layouts) == 0 {
				return errors.New("no collection directories found")
			}

			ctx := cmd.Context()
			stats := llm.NewLLMStats(cfg.LLMStatsWindow)
			providerCfg := llm.ProviderConfig{
				Provider:        cfg.LLMProvider,
				OllamaURL:       cfg.OllamaURL,
				AnthropicAPIKey: cfg.AnthropicAPIKey,
				OpenAIAPIKey:    cfg.OpenAIAPIKey,
				OpenAIBaseURL:   cfg.OpenAIBaseURL,
				GoogleAPIKey:    cfg.GoogleAPIKey,
			}
			rankGen, err := llm.NewStage(ctx, providerCfg, cfg.RankModel, "rank", stats, log)
			if err != nil {
				return err
			}
			defer rankGen.Close()
			refineGen, err := llm.NewStage(ctx, providerCfg, cfg.RefineModel, "refine", stats, log)
			if err != nil {
				return err
			}
			defer refineGen.Close()

			worker, err := pipeline.NewWorker(cfg, rankGen, refineGen, log)
			if err != nil {
				return err
			}

			err = processAll(ctx, worker, layouts, cmd.OutOrStdout(), log)
			for _, stage := range stats.Stages() {
				snap := stats.StageSnapshot(stage)
				log.Info("llm stats", "stage", stage, "calls", snap.Count, "failures", snap.Failures, "p50_ms", snap.P50Ms, "p95_ms", snap.P95Ms)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&topN, "top-n", 5, "sections to select per collection")
	cmd.Flags().IntVar(&perDocumentCap, "cap", 2, "maximum sections per document")
	cmd.Flags().IntVar(&lines, "lines", 20, "lines of text extracted after each heading")
	cmd.Flags().IntVar(&workers, "workers", 8, "parallel extraction workers")
	return cmd
}

// processAll runs collections one after another. A failed collection still
// gets a result file; only write failures are returned.
func processAll(ctx context.Context, w *pipeline.Worker, layouts []collection.Layout, out io.Writer, log *slog.Logger) error {
	var errs []error
	for _, l := range layouts {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		doc := w.RunLayout(ctx, l)
		if err := output.WriteFile(l.OutputPath, doc); err != nil {
			log.Error("write result", "path", l.OutputPath, "error", err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s: %d sections, %d diagnostics\n", l.OutputPath, len(doc.ExtractedSections), len(doc.Diagnostics))
	}
	return errors.Join(errs...)
}

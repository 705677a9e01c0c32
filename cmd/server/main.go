package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/sectionrank/internal/api"
	"github.com/dgallion1/sectionrank/internal/config"
	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/metrics"
	"github.com/dgallion1/sectionrank/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Register()

	// Initialize model clients.
	providerCfg := llm.ProviderConfig{
		Provider:        cfg.LLMProvider,
		OllamaURL:       cfg.OllamaURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		GoogleAPIKey:    cfg.GoogleAPIKey,
	}
	stats := llm.NewLLMStats(cfg.LLMStatsWindow)
	rankGen, err := llm.NewStage(ctx, providerCfg, cfg.RankModel, "rank", stats, log)
	if err != nil {
		log.Error("init rank model", "error", err)
		os.Exit(1)
	}
	refineGen, err := llm.NewStage(ctx, providerCfg, cfg.RefineModel, "refine", stats, log)
	if err != nil {
		log.Error("init refine model", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	worker, err := pipeline.NewWorker(cfg, rankGen, refineGen, log)
	if err != nil {
		log.Error("init worker", "error", err)
		os.Exit(1)
	}
	orch := pipeline.NewOrchestrator(worker, cfg.MaxQueueSize, cfg.JobTTL, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, stats, api.Models{Rank: rankGen.Model(), Refine: refineGen.Model()}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		rankGen.Close()
		refineGen.Close()
	}()

	log.Info("starting sectionrank",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"rank_model", cfg.RankModel,
		"refine_model", cfg.RefineModel,
		"library", cfg.LibraryDir,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

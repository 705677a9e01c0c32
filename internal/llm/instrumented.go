package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/sectionrank/internal/metrics"
)

// Instrumented decorates a Generator with transport retries, latency stats,
// and Prometheus metrics for one pipeline stage.
type Instrumented struct {
	Next  Generator
	Stage string
	Stats *LLMStats
	Log   *slog.Logger

	// Retries is the number of extra attempts after a RetryableError. Zero
	// disables retrying.
	Retries int
	// sleep is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

func NewInstrumented(next Generator, stage string, stats *LLMStats, log *slog.Logger) *Instrumented {
	return &Instrumented{
		Next:    next,
		Stage:   stage,
		Stats:   stats,
		Log:     log,
		Retries: MaxRetries,
	}
}

func (g *Instrumented) Model() string { return g.Next.Model() }

// Close releases the wrapped client's resources when it holds any.
func (g *Instrumented) Close() {
	if c, ok := g.Next.(interface{ Close() }); ok {
		c.Close()
	}
}

func (g *Instrumented) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.Retries; attempt++ {
		if attempt > 0 {
			wait := Backoff(attempt - 1)
			if g.Log != nil {
				g.Log.Warn("retrying llm call", "stage", g.Stage, "attempt", attempt, "wait", wait, "error", lastErr)
			}
			if err := g.wait(ctx, wait); err != nil {
				return "", err
			}
		}

		start := time.Now()
		out, err := g.Next.Generate(ctx, req)
		g.observe(time.Since(start), err)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (g *Instrumented) observe(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	model := g.Next.Model()
	metrics.LLMRequestsTotal.WithLabelValues(g.Stage, model, status).Inc()
	metrics.LLMRequestDuration.WithLabelValues(g.Stage, model).Observe(d.Seconds())
	if g.Stats != nil {
		g.Stats.Record(g.Stage, d.Milliseconds(), err != nil)
	}
}

func (g *Instrumented) wait(ctx context.Context, d time.Duration) error {
	if g.sleep != nil {
		return g.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/sectionrank/internal/metrics"
	"github.com/dgallion1/sectionrank/internal/section"
)

// ErrWorkerFailure marks a unit that panicked or was abandoned.
var ErrWorkerFailure = errors.New("worker failure")

// Outcome is what one unit produced.
type Outcome struct {
	Unit        section.Summarized
	Diagnostics []section.Diagnostic
}

// UnitFunc extracts and summarizes one resolved section. It must handle its
// own recoverable failures and report them through the outcome.
type UnitFunc func(ctx context.Context, r section.Resolved) Outcome

// Coordinator runs units in parallel and resequences them by rank.
type Coordinator struct {
	MaxWorkers  int           // concurrency ceiling; zero means one per CPU
	UnitTimeout time.Duration // zero means no limit
	Log         *slog.Logger
}

// Limit returns the worker count used for n units.
func (c *Coordinator) Limit(n int) int {
	limit := runtime.NumCPU()
	if c.MaxWorkers > 0 && c.MaxWorkers < limit {
		limit = c.MaxWorkers
	}
	if n < limit {
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Run executes fn for every unit. A unit that panics or overruns its timeout
// is recorded as failed; its siblings are never cancelled. Results come back
// ordered by importance rank, not by completion.
func (c *Coordinator) Run(ctx context.Context, units []section.Resolved, fn UnitFunc) ([]section.Summarized, []section.Diagnostic) {
	if len(units) == 0 {
		return nil, nil
	}
	log := c.Log
	if log == nil {
		log = slog.Default()
	}

	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(units))
	)

	var g errgroup.Group
	g.SetLimit(c.Limit(len(units)))
	for _, u := range units {
		g.Go(func() error {
			out := c.runUnit(ctx, u, fn, log)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Unit.ImportanceRank < outcomes[j].Unit.ImportanceRank
	})

	results := make([]section.Summarized, 0, len(outcomes))
	var diags []section.Diagnostic
	for _, o := range outcomes {
		results = append(results, o.Unit)
		diags = append(diags, o.Diagnostics...)
		metrics.SectionUnitsTotal.WithLabelValues(string(o.Unit.Status)).Inc()
	}
	return results, diags
}

// runUnit runs fn in its own goroutine so that a stalled unit can be
// abandoned when its deadline passes.
func (c *Coordinator) runUnit(ctx context.Context, u section.Resolved, fn UnitFunc, log *slog.Logger) Outcome {
	unitCtx := ctx
	var cancel context.CancelFunc = func() {}
	if c.UnitTimeout > 0 {
		unitCtx, cancel = context.WithTimeout(ctx, c.UnitTimeout)
	}
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%w: panic: %v", ErrWorkerFailure, r)
				log.Error("section unit panicked", "document", u.DocumentID, "heading", u.HeadingText, "error", err)
				done <- failedOutcome(u, section.StatusWorkerFailed, section.KindWorkerFailure, err)
			}
		}()
		done <- fn(unitCtx, u)
	}()

	select {
	case out := <-done:
		return out
	case <-unitCtx.Done():
		err := fmt.Errorf("%w: abandoned: %v", ErrWorkerFailure, unitCtx.Err())
		log.Warn("section unit abandoned", "document", u.DocumentID, "heading", u.HeadingText, "error", err)
		return failedOutcome(u, section.StatusTimedOut, section.KindUnitTimeout, err)
	}
}

func failedOutcome(u section.Resolved, status section.Status, kind string, err error) Outcome {
	return Outcome{
		Unit: section.Summarized{
			Window: section.Window{
				DocumentID:  u.DocumentID,
				HeadingText: u.HeadingText,
				PageNumber:  u.PageNumber,
			},
			ImportanceRank: u.ImportanceRank,
			Status:         status,
		},
		Diagnostics: []section.Diagnostic{{
			Stage:      "extract",
			Kind:       kind,
			DocumentID: u.DocumentID,
			Heading:    u.HeadingText,
			Detail:     err.Error(),
		}},
	}
}

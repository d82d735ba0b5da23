// Package crawl orchestrates target runs and detail-page enrichment.
package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/adapter"
	"github.com/jobsift/jobsift/internal/browser"
	"github.com/jobsift/jobsift/internal/clock"
	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/store"
)

// OpenFunc builds an adapter for a parser name, returning its teardown.
// Production wiring adapts adapter.Open; tests substitute fakes.
type OpenFunc func(parser string) (adapter.Adapter, func(), error)

// Runner executes crawl targets: one browser session per target, page by
// page, feeding extracted records to the ingestor.
type Runner struct {
	store  store.Store
	ingest *ingest.Ingestor
	open   OpenFunc
	clock  clock.Clock
	logger *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(
	st store.Store,
	ing *ingest.Ingestor,
	open OpenFunc,
	clk clock.Clock,
	logger *zap.Logger,
) *Runner {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{store: st, ingest: ing, open: open, clock: clk, logger: logger}
}

// RunAll executes every active target for the parser (empty means all),
// continuing past per-target failures.
func (r *Runner) RunAll(ctx context.Context, parser string) error {
	targets, err := r.store.ListTargets(ctx, parser)
	if err != nil {
		return fmt.Errorf("listing targets: %w", err)
	}
	var errs []error
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Run(ctx, target); err != nil {
			r.logger.Error("target run failed",
				zap.String("target_id", target.ID.String()),
				zap.String("query", target.Query.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes one target. A target whose parser cannot be opened fails
// without touching run state; once the target is marked running, every exit
// lands on Success or Error with last_executed_at stamped.
func (r *Runner) Run(ctx context.Context, target search.Target) error {
	a, closeFn, err := r.open(target.Source.Parser)
	if err != nil {
		return fmt.Errorf("opening adapter: %w", err)
	}
	defer closeFn()

	searcher, ok := a.(adapter.Searcher)
	if !ok {
		return fmt.Errorf("parser %q cannot search", target.Source.Parser)
	}

	if err := r.store.SetTargetStatus(ctx, target.ID, search.TargetRunning, nil); err != nil {
		return fmt.Errorf("marking target running: %w", err)
	}

	window := search.RecencyWindow(target.LastExecutedAt, r.clock.Now())
	pages := searcher.PageCount(ctx, target.Query)
	r.logger.Info("starting target run",
		zap.String("target_id", target.ID.String()),
		zap.String("query", target.Query.String()),
		zap.Int("pages", pages),
		zap.Duration("window", window),
	)

	created := 0
	for page := 1; page <= pages; page++ {
		records, err := searcher.ExtractPage(ctx, target.Query, page, window)
		if errors.Is(err, browser.ErrNoResponse) {
			// the retry loop already exhausted itself; skip the page, keep
			// the run alive
			r.logger.Warn("skipping unreachable page",
				zap.String("target_id", target.ID.String()),
				zap.Int("page", page),
			)
			metrics.ObservePage(target.Source.Parser, "skipped")
			continue
		}
		if err != nil {
			return r.fail(ctx, target, fmt.Errorf("page %d: %w", page, err))
		}
		metrics.ObservePage(target.Source.Parser, "ok")

		n, err := r.ingest.AddAll(ctx, records, target)
		created += n
		if err != nil {
			return r.fail(ctx, target, fmt.Errorf("ingesting page %d: %w", page, err))
		}
	}

	now := r.clock.Now()
	if err := r.store.SetTargetStatus(ctx, target.ID, search.TargetSuccess, &now); err != nil {
		return fmt.Errorf("marking target success: %w", err)
	}
	metrics.ObserveTargetRun("success")
	r.logger.Info("target run complete",
		zap.String("target_id", target.ID.String()),
		zap.Int("jobs_created", created),
	)
	return nil
}

// fail stamps the terminal error state. The failed run still counts as
// executed so the next recency window stays narrow.
func (r *Runner) fail(ctx context.Context, target search.Target, cause error) error {
	now := r.clock.Now()
	if err := r.store.SetTargetStatus(ctx, target.ID, search.TargetError, &now); err != nil {
		r.logger.Error("marking target error",
			zap.String("target_id", target.ID.String()),
			zap.Error(err),
		)
	}
	metrics.ObserveTargetRun("error")
	return cause
}

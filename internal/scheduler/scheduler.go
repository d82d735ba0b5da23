// Package scheduler triggers periodic crawl and enrichment passes.
package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/crawl"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/store"
)

// Scheduler runs the crawl-then-populate cycle on a cron spec. Cycles never
// overlap; a tick that fires mid-cycle is dropped.
type Scheduler struct {
	cron      *cron.Cron
	runner    *crawl.Runner
	populator *crawl.Populator
	store     store.Store
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
}

// New builds a Scheduler.
func New(runner *crawl.Runner, populator *crawl.Populator, st store.Store, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		runner:    runner,
		populator: populator,
		store:     st,
		logger:    logger,
	}
}

// Start registers the spec and begins ticking. One cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunCycle(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	go s.RunCycle(ctx)
	return nil
}

// Stop halts ticking and returns a context that is done once any in-flight
// cron job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunCycle marks every active target scheduled, crawls them all and then
// enriches whatever the crawl brought in. Concurrent calls are dropped.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("skipping cycle, previous one still running")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return
	}

	targets, err := s.store.ListTargets(ctx, "")
	if err != nil {
		s.logger.Error("listing targets", zap.Error(err))
		return
	}
	for _, t := range targets {
		if err := s.store.SetTargetStatus(ctx, t.ID, search.TargetScheduled, nil); err != nil {
			s.logger.Error("scheduling target", zap.String("target_id", t.ID.String()), zap.Error(err))
		}
	}

	if err := s.runner.RunAll(ctx, ""); err != nil {
		s.logger.Error("crawl pass finished with errors", zap.Error(err))
	}

	populated, err := s.populator.Run(ctx, "")
	if err != nil {
		s.logger.Error("populate pass finished with errors",
			zap.Int("populated", populated),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("cycle complete", zap.Int("populated", populated))
}

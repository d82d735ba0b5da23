package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/adapter"
	"github.com/jobsift/jobsift/internal/clock"
	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/snapshot"
	"github.com/jobsift/jobsift/internal/store"
)

// Populator enriches stored jobs with their detail pages: description, raw
// HTML, easy-apply flag and an archived snapshot. Postings gone upstream are
// transitioned to Expired instead.
type Populator struct {
	store  store.Store
	snaps  snapshot.Store
	open   OpenFunc
	clock  clock.Clock
	logger *zap.Logger
}

// NewPopulator builds a Populator. snaps may be nil to skip archiving.
func NewPopulator(
	st store.Store,
	snaps snapshot.Store,
	open OpenFunc,
	clk clock.Clock,
	logger *zap.Logger,
) *Populator {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Populator{store: st, snaps: snaps, open: open, clock: clk, logger: logger}
}

// Run enriches every unpopulated job for the parser (empty means all). One
// adapter session is shared per parser across the batch. It returns the
// number of jobs populated and the joined per-job failures.
func (p *Populator) Run(ctx context.Context, parser string) (int, error) {
	pending, err := p.store.ListUnpopulatedJobs(ctx, parser)
	if err != nil {
		return 0, fmt.Errorf("listing unpopulated jobs: %w", err)
	}

	enrichers := make(map[string]adapter.Enricher)
	broken := make(map[string]bool)
	var closers []func()
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	populated := 0
	var errs []error
	for _, pj := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if broken[pj.Parser] {
			continue
		}
		enricher, ok := enrichers[pj.Parser]
		if !ok {
			a, closeFn, err := p.open(pj.Parser)
			if err != nil {
				p.logger.Error("opening adapter", zap.String("parser", pj.Parser), zap.Error(err))
				broken[pj.Parser] = true
				errs = append(errs, err)
				continue
			}
			closers = append(closers, closeFn)
			enricher, ok = a.(adapter.Enricher)
			if !ok {
				p.logger.Warn("parser cannot enrich", zap.String("parser", pj.Parser))
				broken[pj.Parser] = true
				continue
			}
			enrichers[pj.Parser] = enricher
		}

		if err := p.populate(ctx, enricher, pj.Job); err != nil {
			p.logger.Error("populating job",
				zap.String("url", pj.Job.URL),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		populated++
	}
	return populated, errors.Join(errs...)
}

func (p *Populator) populate(ctx context.Context, enricher adapter.Enricher, job jobs.Job) error {
	expired, err := enricher.Enrich(ctx, &job)
	if err != nil {
		return fmt.Errorf("enriching %q: %w", job.URL, err)
	}
	if expired {
		if err := jobs.Transition(ctx, p.store, &job, jobs.StatusExpired, p.clock.Now()); err != nil {
			return fmt.Errorf("expiring %q: %w", job.URL, err)
		}
		return nil
	}

	if p.snaps != nil && job.RawHTML != "" {
		path := fmt.Sprintf("jobs/%s.html", job.ID)
		uri, err := p.snaps.Put(ctx, path, "text/html", strings.NewReader(job.RawHTML))
		if err != nil {
			// the enriched row is still worth keeping without its archive
			p.logger.Warn("archiving snapshot failed", zap.String("url", job.URL), zap.Error(err))
		} else {
			job.SnapshotURI = uri
		}
	}

	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("saving %q: %w", job.URL, err)
	}
	return nil
}

// Package ingest deduplicates extracted records into stored jobs.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/notify"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/store"
)

// Cache is an optional fast-path over the store's URL uniqueness. A cache
// miss is never authoritative; the store still deduplicates.
type Cache interface {
	Seen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string) error
}

// Ingestor turns records from a crawl into persisted jobs. Cache and
// publisher are optional.
type Ingestor struct {
	store  store.Store
	cache  Cache
	pub    notify.Publisher
	logger *zap.Logger
}

// New builds an Ingestor. cache and pub may be nil.
func New(st store.Store, cache Cache, pub notify.Publisher, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Ingestor{store: st, cache: cache, pub: pub, logger: logger}
}

// Add persists one record for the target it was found through. It reports
// whether a new job row was created; re-ingesting a known posting is a
// no-op. Incomplete records are rejected.
func (i *Ingestor) Add(ctx context.Context, rec jobs.Record, target search.Target) (bool, error) {
	parser := target.Source.Parser
	if !rec.Complete() {
		metrics.ObserveRecord(parser, "incomplete")
		return false, fmt.Errorf("incomplete record for %q", rec.URL)
	}

	if i.cache != nil {
		seen, err := i.cache.Seen(ctx, rec.URL)
		if err != nil {
			// cache trouble never blocks ingestion
			i.logger.Warn("seen cache lookup failed", zap.String("url", rec.URL), zap.Error(err))
		} else if seen {
			metrics.ObserveRecord(parser, "duplicate")
			return false, nil
		}
	}

	company, _, err := i.store.GetOrCreateCompany(ctx, rec.Company, rec.CompanyURL)
	if err != nil {
		return false, fmt.Errorf("company %q: %w", rec.Company, err)
	}

	job := jobs.Job{
		CompanyID: company.ID,
		Title:     rec.Title,
		URL:       rec.URL,
		PostedAt:  ptr(rec.PostedAt),
		TargetID:  ptr(target.ID),
		FoundAt:   ptr(rec.FoundAt),
		Status:    jobs.StatusNew,
	}
	if rec.Location != "" {
		location, _, err := i.store.GetOrCreateLocation(ctx, rec.Location)
		if err != nil {
			return false, fmt.Errorf("location %q: %w", rec.Location, err)
		}
		job.LocationID = ptr(location.ID)
	}

	stored, created, err := i.store.GetOrCreateJob(ctx, job)
	if err != nil {
		return false, fmt.Errorf("job %q: %w", rec.URL, err)
	}

	if i.cache != nil {
		if err := i.cache.MarkSeen(ctx, rec.URL); err != nil {
			i.logger.Warn("seen cache write failed", zap.String("url", rec.URL), zap.Error(err))
		}
	}

	if !created {
		metrics.ObserveRecord(parser, "duplicate")
		return false, nil
	}

	metrics.ObserveRecord(parser, "created")
	if i.pub != nil {
		if _, err := i.pub.PublishJob(ctx, stored); err != nil {
			// the job is persisted either way; delivery is best effort
			i.logger.Warn("publish new job failed", zap.String("url", rec.URL), zap.Error(err))
		}
	}
	return true, nil
}

// AddAll ingests every record, continuing past per-record failures. It
// returns the number of jobs created and the joined failures, if any.
func (i *Ingestor) AddAll(ctx context.Context, recs []jobs.Record, target search.Target) (int, error) {
	var created int
	var errs []error
	for _, rec := range recs {
		ok, err := i.Add(ctx, rec, target)
		if err != nil {
			i.logger.Error("ingesting record",
				zap.String("url", rec.URL),
				zap.String("parser", target.Source.Parser),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if ok {
			created++
		}
	}
	return created, errors.Join(errs...)
}

func ptr[T any](v T) *T { return &v }

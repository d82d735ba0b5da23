// Package store defines the persistence interface consumed by the crawl
// pipeline. Implementations live under internal/storage.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/search"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// PendingJob pairs an unpopulated job with the parser of the source it was
// found through.
type PendingJob struct {
	Job    jobs.Job
	Parser string
}

// Store is the relational persistence collaborator. Get-or-create operations
// are keyed by each entity's natural key and must be safe under concurrent
// writers; the created flag reports whether a new row was inserted.
type Store interface {
	// CreateSource registers a listing site and attaches it to every known
	// query (cross-product, conflict-ignoring).
	CreateSource(ctx context.Context, s search.Source) (search.Source, error)
	// CreateQuery registers a search and attaches it to every known source
	// (cross-product, conflict-ignoring).
	CreateQuery(ctx context.Context, q search.Query) (search.Query, error)
	GetSourceByParser(ctx context.Context, parser string) (search.Source, error)
	// ListTargets returns active targets, optionally filtered by source
	// parser name (empty string means all).
	ListTargets(ctx context.Context, parser string) ([]search.Target, error)
	// SetTargetStatus updates a target's run status. executedAt must be
	// non-nil exactly when status is TargetSuccess or TargetError.
	SetTargetStatus(ctx context.Context, id uuid.UUID, status search.TargetStatus, executedAt *time.Time) error
	// ResetTargets clears last_executed_at for targets of the given parser
	// (empty string means all) and returns the number updated.
	ResetTargets(ctx context.Context, parser string) (int64, error)

	GetOrCreateCompany(ctx context.Context, name, url string) (jobs.Company, bool, error)
	GetOrCreateLocation(ctx context.Context, name string) (jobs.Location, bool, error)
	// GetOrCreateJob deduplicates by posting URL.
	GetOrCreateJob(ctx context.Context, j jobs.Job) (jobs.Job, bool, error)
	UpdateJob(ctx context.Context, j jobs.Job) error
	ListJobs(ctx context.Context, status jobs.Status, limit int) ([]jobs.Job, error)
	// ListUnpopulatedJobs returns New, not-yet-enriched jobs, optionally
	// filtered by source parser name.
	ListUnpopulatedJobs(ctx context.Context, parser string) ([]PendingJob, error)

	jobs.Recorder
	ListEvents(ctx context.Context, jobID uuid.UUID) ([]jobs.Event, error)
}

// Package postgres provides the Postgres-backed persistence implementation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool dbPool
}

// New connects a pool using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool, primarily for tests.
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateSource upserts a source by parser name and attaches it to every
// known query.
func (s *Store) CreateSource(ctx context.Context, src search.Source) (search.Source, error) {
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO sources (id, name, parser)
VALUES ($1, $2, $3)
ON CONFLICT (parser) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, src.ID, src.Name, src.Parser)
	if err := row.Scan(&src.ID); err != nil {
		return search.Source{}, fmt.Errorf("upsert source: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
INSERT INTO targets (id, query_id, source_id, status, active)
SELECT gen_random_uuid(), q.id, $1, $2, true
FROM queries q
ON CONFLICT (query_id, source_id) DO NOTHING`, src.ID, search.TargetIdle); err != nil {
		return search.Source{}, fmt.Errorf("attach targets: %w", err)
	}
	return src, nil
}

// CreateQuery inserts a query and attaches it to every known source.
func (s *Store) CreateQuery(ctx context.Context, q search.Query) (search.Query, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.GeoID == 0 {
		q.GeoID = search.WorldwideGeoID
	}
	if _, err := s.pool.Exec(ctx, `
INSERT INTO queries (id, keywords, location_name, geo_id, easy_apply, onsite, remote, hybrid)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
		q.ID, q.Keywords, q.LocationName, q.GeoID, q.EasyApply, q.Onsite, q.Remote, q.Hybrid,
	); err != nil {
		return search.Query{}, fmt.Errorf("insert query: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
INSERT INTO targets (id, query_id, source_id, status, active)
SELECT gen_random_uuid(), $1, s.id, $2, true
FROM sources s
ON CONFLICT (query_id, source_id) DO NOTHING`, q.ID, search.TargetIdle); err != nil {
		return search.Query{}, fmt.Errorf("attach targets: %w", err)
	}
	return q, nil
}

// GetSourceByParser returns the source registered for a parser name.
func (s *Store) GetSourceByParser(ctx context.Context, parser string) (search.Source, error) {
	var src search.Source
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, parser FROM sources WHERE parser = $1`, parser)
	if err := row.Scan(&src.ID, &src.Name, &src.Parser); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return search.Source{}, store.ErrNotFound
		}
		return search.Source{}, fmt.Errorf("select source: %w", err)
	}
	return src, nil
}

const targetColumns = `
t.id, t.status, t.last_executed_at, t.active,
q.id, q.keywords, q.location_name, q.geo_id, q.easy_apply, q.onsite, q.remote, q.hybrid,
s.id, s.name, s.parser`

// ListTargets returns active targets, optionally filtered by parser.
func (s *Store) ListTargets(ctx context.Context, parser string) ([]search.Target, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+targetColumns+`
FROM targets t
JOIN queries q ON q.id = t.query_id
JOIN sources s ON s.id = t.source_id
WHERE t.active AND ($1 = '' OR s.parser = $1)
ORDER BY t.id`, parser)
	if err != nil {
		return nil, fmt.Errorf("select targets: %w", err)
	}
	defer rows.Close()

	var out []search.Target
	for rows.Next() {
		var t search.Target
		if err := rows.Scan(
			&t.ID, &t.Status, &t.LastExecutedAt, &t.Active,
			&t.Query.ID, &t.Query.Keywords, &t.Query.LocationName, &t.Query.GeoID,
			&t.Query.EasyApply, &t.Query.Onsite, &t.Query.Remote, &t.Query.Hybrid,
			&t.Source.ID, &t.Source.Name, &t.Source.Parser,
		); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTargetStatus updates a target's run status, stamping last_executed_at
// on the terminal statuses only.
func (s *Store) SetTargetStatus(
	ctx context.Context,
	id uuid.UUID,
	status search.TargetStatus,
	executedAt *time.Time,
) error {
	terminal := status == search.TargetSuccess || status == search.TargetError
	if terminal != (executedAt != nil) {
		return fmt.Errorf("executedAt must be set exactly for success/error, got %s", status)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE targets
SET status = $2, last_executed_at = COALESCE($3, last_executed_at)
WHERE id = $1`, id, status, executedAt)
	if err != nil {
		return fmt.Errorf("update target status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ResetTargets clears last_executed_at for targets of the given parser.
func (s *Store) ResetTargets(ctx context.Context, parser string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE targets t
SET last_executed_at = NULL
FROM sources s
WHERE t.source_id = s.id
  AND t.last_executed_at IS NOT NULL
  AND ($1 = '' OR s.parser = $1)`, parser)
	if err != nil {
		return 0, fmt.Errorf("reset targets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetOrCreateCompany deduplicates companies by URL.
func (s *Store) GetOrCreateCompany(ctx context.Context, name, url string) (jobs.Company, bool, error) {
	c := jobs.Company{ID: uuid.New(), Name: name, URL: url}
	row := s.pool.QueryRow(ctx, `
INSERT INTO companies (id, name, url)
VALUES ($1, $2, $3)
ON CONFLICT (url) DO NOTHING
RETURNING id`, c.ID, name, url)
	err := row.Scan(&c.ID)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return jobs.Company{}, false, fmt.Errorf("insert company: %w", err)
	}

	row = s.pool.QueryRow(ctx,
		`SELECT id, name, url FROM companies WHERE url = $1`, url)
	if err := row.Scan(&c.ID, &c.Name, &c.URL); err != nil {
		return jobs.Company{}, false, fmt.Errorf("select company: %w", err)
	}
	return c, false, nil
}

// GetOrCreateLocation deduplicates locations by name.
func (s *Store) GetOrCreateLocation(ctx context.Context, name string) (jobs.Location, bool, error) {
	l := jobs.Location{ID: uuid.New(), Name: name}
	row := s.pool.QueryRow(ctx, `
INSERT INTO locations (id, name)
VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING
RETURNING id`, l.ID, name)
	err := row.Scan(&l.ID)
	if err == nil {
		return l, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return jobs.Location{}, false, fmt.Errorf("insert location: %w", err)
	}

	row = s.pool.QueryRow(ctx,
		`SELECT id, name, geo_id FROM locations WHERE name = $1`, name)
	if err := row.Scan(&l.ID, &l.Name, &l.GeoID); err != nil {
		return jobs.Location{}, false, fmt.Errorf("select location: %w", err)
	}
	return l, false, nil
}

const jobColumns = `
id, company_id, title, url, location_id, posted_at, target_id, found_at,
populated, easy_apply, description, raw_html, snapshot_uri, status, applied_at`

func scanJob(row pgx.Row) (jobs.Job, error) {
	var j jobs.Job
	err := row.Scan(
		&j.ID, &j.CompanyID, &j.Title, &j.URL, &j.LocationID, &j.PostedAt,
		&j.TargetID, &j.FoundAt, &j.Populated, &j.EasyApply, &j.Description,
		&j.RawHTML, &j.SnapshotURI, &j.Status, &j.AppliedAt,
	)
	return j, err
}

// GetOrCreateJob deduplicates jobs by posting URL.
func (s *Store) GetOrCreateJob(ctx context.Context, j jobs.Job) (jobs.Job, bool, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = jobs.StatusNew
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO jobs (`+jobColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (url) DO NOTHING
RETURNING id`,
		j.ID, j.CompanyID, j.Title, j.URL, j.LocationID, j.PostedAt,
		j.TargetID, j.FoundAt, j.Populated, j.EasyApply, j.Description,
		j.RawHTML, j.SnapshotURI, j.Status, j.AppliedAt,
	)
	err := row.Scan(&j.ID)
	if err == nil {
		return j, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return jobs.Job{}, false, fmt.Errorf("insert job: %w", err)
	}

	existing, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE url = $1`, j.URL))
	if err != nil {
		return jobs.Job{}, false, fmt.Errorf("select job: %w", err)
	}
	return existing, false, nil
}

const updateJobSQL = `
UPDATE jobs
SET company_id = $2, title = $3, location_id = $4, posted_at = $5,
    target_id = $6, found_at = $7, populated = $8, easy_apply = $9,
    description = $10, raw_html = $11, snapshot_uri = $12, status = $13,
    applied_at = $14
WHERE url = $1`

func updateJobArgs(j jobs.Job) []any {
	return []any{
		j.URL, j.CompanyID, j.Title, j.LocationID, j.PostedAt,
		j.TargetID, j.FoundAt, j.Populated, j.EasyApply,
		j.Description, j.RawHTML, j.SnapshotURI, j.Status, j.AppliedAt,
	}
}

// UpdateJob replaces the stored job row, keyed by posting URL.
func (s *Store) UpdateJob(ctx context.Context, j jobs.Job) error {
	tag, err := s.pool.Exec(ctx, updateJobSQL, updateJobArgs(j)...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListJobs returns jobs in the given status, newest found first. A zero
// limit returns everything.
func (s *Store) ListJobs(ctx context.Context, status jobs.Status, limit int) ([]jobs.Job, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE ($1 = '' OR status = $1)
ORDER BY found_at DESC NULLS LAST
LIMIT NULLIF($2, 0)`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListUnpopulatedJobs returns New jobs awaiting enrichment together with
// the parser that found them.
func (s *Store) ListUnpopulatedJobs(ctx context.Context, parser string) ([]store.PendingJob, error) {
	rows, err := s.pool.Query(ctx, `
SELECT j.id, j.company_id, j.title, j.url, j.location_id, j.posted_at,
       j.target_id, j.found_at, j.populated, j.easy_apply, j.description,
       j.raw_html, j.snapshot_uri, j.status, j.applied_at, s.parser
FROM jobs j
JOIN targets t ON t.id = j.target_id
JOIN sources s ON s.id = t.source_id
WHERE NOT j.populated
  AND j.status = $1
  AND ($2 = '' OR s.parser = $2)
ORDER BY j.found_at NULLS LAST`, jobs.StatusNew, parser)
	if err != nil {
		return nil, fmt.Errorf("select unpopulated jobs: %w", err)
	}
	defer rows.Close()

	var out []store.PendingJob
	for rows.Next() {
		var pj store.PendingJob
		j := &pj.Job
		if err := rows.Scan(
			&j.ID, &j.CompanyID, &j.Title, &j.URL, &j.LocationID, &j.PostedAt,
			&j.TargetID, &j.FoundAt, &j.Populated, &j.EasyApply, &j.Description,
			&j.RawHTML, &j.SnapshotURI, &j.Status, &j.AppliedAt, &pj.Parser,
		); err != nil {
			return nil, fmt.Errorf("scan unpopulated job: %w", err)
		}
		out = append(out, pj)
	}
	return out, rows.Err()
}

const insertEventSQL = `
INSERT INTO events (id, job_id, kind, old_status, new_status, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// RecordTransition persists the job and appends its status-change event in
// one transaction.
func (s *Store) RecordTransition(ctx context.Context, j jobs.Job, ev jobs.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updateJobSQL, updateJobArgs(j)...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.Exec(ctx, insertEventSQL,
		ev.ID, ev.JobID, ev.Kind, ev.OldStatus, ev.NewStatus, ev.Note, ev.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// RecordNote appends a note event.
func (s *Store) RecordNote(ctx context.Context, ev jobs.Event) error {
	if _, err := s.pool.Exec(ctx, insertEventSQL,
		ev.ID, ev.JobID, ev.Kind, ev.OldStatus, ev.NewStatus, ev.Note, ev.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns the audit trail for a job in append order.
func (s *Store) ListEvents(ctx context.Context, jobID uuid.UUID) ([]jobs.Event, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, job_id, kind, old_status, new_status, note, created_at
FROM events
WHERE job_id = $1
ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var out []jobs.Event
	for rows.Next() {
		var ev jobs.Event
		if err := rows.Scan(
			&ev.ID, &ev.JobID, &ev.Kind, &ev.OldStatus, &ev.NewStatus, &ev.Note, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

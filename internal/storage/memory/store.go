// Package memory provides an in-memory store implementation for development
// and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/store"
)

// Store keeps every entity in maps guarded by one mutex.
type Store struct {
	mu        sync.RWMutex
	sources   map[uuid.UUID]search.Source
	queries   map[uuid.UUID]search.Query
	targets   map[uuid.UUID]*search.Target
	companies map[string]jobs.Company  // by URL
	locations map[string]jobs.Location // by name
	jobs      map[string]jobs.Job      // by URL
	events    map[uuid.UUID][]jobs.Event
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		sources:   make(map[uuid.UUID]search.Source),
		queries:   make(map[uuid.UUID]search.Query),
		targets:   make(map[uuid.UUID]*search.Target),
		companies: make(map[string]jobs.Company),
		locations: make(map[string]jobs.Location),
		jobs:      make(map[string]jobs.Job),
		events:    make(map[uuid.UUID][]jobs.Event),
	}
}

// CreateSource registers a source and attaches a target for every query.
func (s *Store) CreateSource(_ context.Context, src search.Source) (search.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	s.sources[src.ID] = src
	for _, q := range s.queries {
		s.attachLocked(q, src)
	}
	return src, nil
}

// CreateQuery registers a query and attaches a target for every source.
func (s *Store) CreateQuery(_ context.Context, q search.Query) (search.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.GeoID == 0 {
		q.GeoID = search.WorldwideGeoID
	}
	s.queries[q.ID] = q
	for _, src := range s.sources {
		s.attachLocked(q, src)
	}
	return q, nil
}

func (s *Store) attachLocked(q search.Query, src search.Source) {
	for _, t := range s.targets {
		if t.Query.ID == q.ID && t.Source.ID == src.ID {
			return
		}
	}
	t := &search.Target{
		ID:     uuid.New(),
		Query:  q,
		Source: src,
		Status: search.TargetIdle,
		Active: true,
	}
	s.targets[t.ID] = t
}

// GetSourceByParser returns the source registered for a parser name.
func (s *Store) GetSourceByParser(_ context.Context, parser string) (search.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if src.Parser == parser {
			return src, nil
		}
	}
	return search.Source{}, store.ErrNotFound
}

// ListTargets returns active targets, optionally filtered by parser.
func (s *Store) ListTargets(_ context.Context, parser string) ([]search.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []search.Target
	for _, t := range s.targets {
		if !t.Active {
			continue
		}
		if parser != "" && t.Source.Parser != parser {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

// SetTargetStatus updates a target's run status.
func (s *Store) SetTargetStatus(
	_ context.Context,
	id uuid.UUID,
	status search.TargetStatus,
	executedAt *time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return store.ErrNotFound
	}
	terminal := status == search.TargetSuccess || status == search.TargetError
	if terminal != (executedAt != nil) {
		return fmt.Errorf("executedAt must be set exactly for success/error, got %s", status)
	}
	t.Status = status
	if executedAt != nil {
		at := *executedAt
		t.LastExecutedAt = &at
	}
	return nil
}

// ResetTargets clears last_executed_at for targets of the given parser.
func (s *Store) ResetTargets(_ context.Context, parser string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.targets {
		if parser != "" && t.Source.Parser != parser {
			continue
		}
		if t.LastExecutedAt != nil {
			t.LastExecutedAt = nil
			n++
		}
	}
	return n, nil
}

// GetOrCreateCompany deduplicates companies by URL.
func (s *Store) GetOrCreateCompany(_ context.Context, name, url string) (jobs.Company, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.companies[url]; ok {
		return c, false, nil
	}
	c := jobs.Company{ID: uuid.New(), Name: name, URL: url}
	s.companies[url] = c
	return c, true, nil
}

// GetOrCreateLocation deduplicates locations by name.
func (s *Store) GetOrCreateLocation(_ context.Context, name string) (jobs.Location, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locations[name]; ok {
		return l, false, nil
	}
	l := jobs.Location{ID: uuid.New(), Name: name}
	s.locations[name] = l
	return l, true, nil
}

// GetOrCreateJob deduplicates jobs by posting URL.
func (s *Store) GetOrCreateJob(_ context.Context, j jobs.Job) (jobs.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[j.URL]; ok {
		return existing, false, nil
	}
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = jobs.StatusNew
	}
	s.jobs[j.URL] = j
	return j, true, nil
}

// UpdateJob replaces the stored job row.
func (s *Store) UpdateJob(_ context.Context, j jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.URL]; !ok {
		return store.ErrNotFound
	}
	s.jobs[j.URL] = j
	return nil
}

// ListJobs returns jobs in the given status, up to limit (0 means all).
func (s *Store) ListJobs(_ context.Context, status jobs.Status, limit int) ([]jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.Job
	for _, j := range s.jobs {
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListUnpopulatedJobs returns New jobs awaiting enrichment.
func (s *Store) ListUnpopulatedJobs(_ context.Context, parser string) ([]store.PendingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.PendingJob
	for _, j := range s.jobs {
		if j.Populated || j.Status != jobs.StatusNew || j.TargetID == nil {
			continue
		}
		t, ok := s.targets[*j.TargetID]
		if !ok {
			continue
		}
		if parser != "" && t.Source.Parser != parser {
			continue
		}
		out = append(out, store.PendingJob{Job: j, Parser: t.Source.Parser})
	}
	return out, nil
}

// RecordTransition persists the job and appends its status-change event as
// one step.
func (s *Store) RecordTransition(_ context.Context, j jobs.Job, ev jobs.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.URL]; !ok {
		return store.ErrNotFound
	}
	s.jobs[j.URL] = j
	s.events[j.ID] = append(s.events[j.ID], ev)
	return nil
}

// RecordNote appends a note event.
func (s *Store) RecordNote(_ context.Context, ev jobs.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.JobID] = append(s.events[ev.JobID], ev)
	return nil
}

// ListEvents returns the audit trail for a job in append order.
func (s *Store) ListEvents(_ context.Context, jobID uuid.UUID) ([]jobs.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[jobID]
	out := make([]jobs.Event, len(evs))
	copy(out, evs)
	return out, nil
}

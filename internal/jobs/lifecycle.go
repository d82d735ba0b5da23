package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition indicates a status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// Recorder persists a job mutation together with its audit entry. The store
// is responsible for making RecordTransition atomic.
type Recorder interface {
	RecordTransition(ctx context.Context, job Job, ev Event) error
	RecordNote(ctx context.Context, ev Event) error
}

// Transition moves job to the requested status. A transition to the current
// status is a no-op: no Event is appended and nothing is persisted. Moving
// into StatusApplied stamps AppliedAt. The current status is taken from the
// passed job value rather than any cached copy, so reloading the entity
// between calls cannot produce a stale diff.
func Transition(ctx context.Context, rec Recorder, job *Job, to Status, now time.Time) error {
	if job.Status == to {
		return nil
	}
	if !TransitionAllowed(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}

	old := job.Status
	job.Status = to
	if to == StatusApplied {
		at := now
		job.AppliedAt = &at
	}

	ev := Event{
		ID:        uuid.New(),
		JobID:     job.ID,
		Kind:      KindStatusChange,
		OldStatus: old,
		NewStatus: to,
		CreatedAt: now,
	}
	if err := rec.RecordTransition(ctx, *job, ev); err != nil {
		job.Status = old
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// AddNote appends a free-text note to the job's history.
func AddNote(ctx context.Context, rec Recorder, jobID uuid.UUID, note string, now time.Time) error {
	ev := Event{
		ID:        uuid.New(),
		JobID:     jobID,
		Kind:      KindNote,
		Note:      note,
		CreatedAt: now,
	}
	if err := rec.RecordNote(ctx, ev); err != nil {
		return fmt.Errorf("record note: %w", err)
	}
	return nil
}

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	transitions []Event
	notes       []Event
	failWith    error
}

func (r *fakeRecorder) RecordTransition(_ context.Context, _ Job, ev Event) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.transitions = append(r.transitions, ev)
	return nil
}

func (r *fakeRecorder) RecordNote(_ context.Context, ev Event) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.notes = append(r.notes, ev)
	return nil
}

func TestTransitionAppliedStampsTimestamp(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &Job{ID: uuid.New(), Status: StatusNew}

	require.NoError(t, Transition(context.Background(), rec, job, StatusApplied, now))

	assert.Equal(t, StatusApplied, job.Status)
	require.NotNil(t, job.AppliedAt)
	assert.Equal(t, now, *job.AppliedAt)

	require.Len(t, rec.transitions, 1)
	ev := rec.transitions[0]
	assert.Equal(t, KindStatusChange, ev.Kind)
	assert.Equal(t, StatusNew, ev.OldStatus)
	assert.Equal(t, StatusApplied, ev.NewStatus)
	assert.Equal(t, job.ID, ev.JobID)
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	job := &Job{ID: uuid.New(), Status: StatusSaved}

	require.NoError(t, Transition(context.Background(), rec, job, StatusSaved, time.Now()))
	assert.Empty(t, rec.transitions)
	assert.Equal(t, StatusSaved, job.Status)
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	job := &Job{ID: uuid.New(), Status: StatusDismissed}

	err := Transition(context.Background(), rec, job, StatusApplied, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, rec.transitions)
	assert.Equal(t, StatusDismissed, job.Status)
}

func TestTransitionRollsBackOnRecordFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	rec := &fakeRecorder{failWith: boom}
	job := &Job{ID: uuid.New(), Status: StatusNew}

	err := Transition(context.Background(), rec, job, StatusExpired, time.Now())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusNew, job.Status)
}

func TestAddNote(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	id := uuid.New()
	now := time.Now()

	require.NoError(t, AddNote(context.Background(), rec, id, "recruiter called", now))
	require.Len(t, rec.notes, 1)
	assert.Equal(t, KindNote, rec.notes[0].Kind)
	assert.Equal(t, "recruiter called", rec.notes[0].Note)
	assert.Equal(t, id, rec.notes[0].JobID)
}

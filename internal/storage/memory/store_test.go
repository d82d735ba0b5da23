package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/store"
)

func TestTargetsAreCrossProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	_, err := s.CreateQuery(ctx, search.Query{Keywords: "go"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, search.Source{Name: "LinkedIn", Parser: "linkedin"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, search.Source{Name: "IP", Parser: "ip"})
	require.NoError(t, err)
	_, err = s.CreateQuery(ctx, search.Query{Keywords: "rust"})
	require.NoError(t, err)

	all, err := s.ListTargets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for _, target := range all {
		assert.Equal(t, search.TargetIdle, target.Status)
		assert.True(t, target.Active)
		assert.Nil(t, target.LastExecutedAt)
	}

	linkedinOnly, err := s.ListTargets(ctx, "linkedin")
	require.NoError(t, err)
	assert.Len(t, linkedinOnly, 2)
}

func TestCreateQueryDefaultsGeoID(t *testing.T) {
	t.Parallel()

	q, err := New().CreateQuery(context.Background(), search.Query{Keywords: "go"})
	require.NoError(t, err)
	assert.Equal(t, search.WorldwideGeoID, q.GeoID)
}

func TestGetSourceByParser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	created, err := s.CreateSource(ctx, search.Source{Name: "LinkedIn", Parser: "linkedin"})
	require.NoError(t, err)

	got, err := s.GetSourceByParser(ctx, "linkedin")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = s.GetSourceByParser(ctx, "monster")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetTargetStatusEnforcesExecutedAtInvariant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	_, err := s.CreateQuery(ctx, search.Query{Keywords: "go"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, search.Source{Name: "LinkedIn", Parser: "linkedin"})
	require.NoError(t, err)
	targets, err := s.ListTargets(ctx, "")
	require.NoError(t, err)
	id := targets[0].ID

	now := time.Now().UTC()
	require.Error(t, s.SetTargetStatus(ctx, id, search.TargetRunning, &now))
	require.Error(t, s.SetTargetStatus(ctx, id, search.TargetSuccess, nil))
	require.NoError(t, s.SetTargetStatus(ctx, id, search.TargetRunning, nil))
	require.NoError(t, s.SetTargetStatus(ctx, id, search.TargetSuccess, &now))

	targets, err = s.ListTargets(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, targets[0].LastExecutedAt)
	assert.Equal(t, now, *targets[0].LastExecutedAt)

	require.ErrorIs(t, s.SetTargetStatus(ctx, uuid.New(), search.TargetRunning, nil), store.ErrNotFound)
}

func TestResetTargets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	_, err := s.CreateQuery(ctx, search.Query{Keywords: "go"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, search.Source{Name: "LinkedIn", Parser: "linkedin"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, search.Source{Name: "IP", Parser: "ip"})
	require.NoError(t, err)

	now := time.Now().UTC()
	targets, err := s.ListTargets(ctx, "")
	require.NoError(t, err)
	for _, target := range targets {
		require.NoError(t, s.SetTargetStatus(ctx, target.ID, search.TargetSuccess, &now))
	}

	n, err := s.ResetTargets(ctx, "linkedin")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// already-cleared targets are not counted again
	n, err = s.ResetTargets(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestGetOrCreateDeduplication(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	c1, created, err := s.GetOrCreateCompany(ctx, "Acme", "https://x/acme")
	require.NoError(t, err)
	assert.True(t, created)
	c2, created, err := s.GetOrCreateCompany(ctx, "Acme Corp", "https://x/acme")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c1.ID, c2.ID)

	l1, created, err := s.GetOrCreateLocation(ctx, "Boston, MA")
	require.NoError(t, err)
	assert.True(t, created)
	l2, created, err := s.GetOrCreateLocation(ctx, "Boston, MA")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, l1.ID, l2.ID)

	j1, created, err := s.GetOrCreateJob(ctx, jobs.Job{CompanyID: c1.ID, Title: "Eng", URL: "https://x/jobs/1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, jobs.StatusNew, j1.Status)

	j2, created, err := s.GetOrCreateJob(ctx, jobs.Job{CompanyID: c1.ID, Title: "Other", URL: "https://x/jobs/1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, j1.ID, j2.ID)
	assert.Equal(t, "Eng", j2.Title)
}

func TestListUnpopulatedJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	_, err := s.CreateQuery(ctx, search.Query{Keywords: "go"})
	require.NoError(t, err)
	_, err = s.CreateSource(ctx, search.Source{Name: "LinkedIn", Parser: "linkedin"})
	require.NoError(t, err)
	targets, err := s.ListTargets(ctx, "")
	require.NoError(t, err)
	targetID := targets[0].ID

	c, _, err := s.GetOrCreateCompany(ctx, "Acme", "https://x/acme")
	require.NoError(t, err)

	fresh, _, err := s.GetOrCreateJob(ctx, jobs.Job{CompanyID: c.ID, Title: "A", URL: "https://x/1", TargetID: &targetID})
	require.NoError(t, err)
	_, _, err = s.GetOrCreateJob(ctx, jobs.Job{CompanyID: c.ID, Title: "B", URL: "https://x/2", TargetID: &targetID, Populated: true})
	require.NoError(t, err)
	_, _, err = s.GetOrCreateJob(ctx, jobs.Job{CompanyID: c.ID, Title: "C", URL: "https://x/3"})
	require.NoError(t, err)

	pending, err := s.ListUnpopulatedJobs(ctx, "linkedin")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].Job.ID)
	assert.Equal(t, "linkedin", pending[0].Parser)

	none, err := s.ListUnpopulatedJobs(ctx, "ip")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordTransitionAndEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	c, _, err := s.GetOrCreateCompany(ctx, "Acme", "https://x/acme")
	require.NoError(t, err)
	j, _, err := s.GetOrCreateJob(ctx, jobs.Job{CompanyID: c.ID, Title: "Eng", URL: "https://x/jobs/1"})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, jobs.Transition(ctx, s, &j, jobs.StatusApplied, now))
	require.NoError(t, jobs.AddNote(ctx, s, j.ID, "sent resume", now))

	events, err := s.ListEvents(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, jobs.KindStatusChange, events[0].Kind)
	assert.Equal(t, jobs.KindNote, events[1].Kind)

	missing := jobs.Job{ID: uuid.New(), URL: "https://x/jobs/none"}
	err = s.RecordTransition(ctx, missing, jobs.Event{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

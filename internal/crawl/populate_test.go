package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/adapter"
	"github.com/jobsift/jobsift/internal/clock"
	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/snapshot"
	"github.com/jobsift/jobsift/internal/storage/memory"
)

func seedUnpopulated(t *testing.T, st *memory.Store, urls ...string) search.Target {
	t.Helper()
	target := seedTarget(t, st)
	ing := ingest.New(st, nil, nil, nil)
	for _, u := range urls {
		created, err := ing.Add(context.Background(), record(u), target)
		require.NoError(t, err)
		require.True(t, created)
	}
	return target
}

func TestPopulateEnrichesAndArchives(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	seedUnpopulated(t, st, "https://x/jobs/1", "https://x/jobs/2")

	a := &fakeAdapter{enrich: func(job *jobs.Job) (bool, error) {
		job.Description = "desc"
		job.RawHTML = "<html>page</html>"
		job.EasyApply = true
		job.Populated = true
		return false, nil
	}}
	snaps := snapshot.NewMemory()
	closed := 0
	p := NewPopulator(st, snaps, openFake(a, &closed), clock.Fixed{Time: fixedNow}, nil)

	populated, err := p.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, populated)
	assert.Len(t, a.enriched, 2)
	// one session for the whole batch
	assert.Equal(t, 1, closed)

	stored, err := st.ListJobs(ctx, jobs.StatusNew, 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, j := range stored {
		assert.True(t, j.Populated)
		assert.Equal(t, "desc", j.Description)
		assert.Contains(t, j.SnapshotURI, "memory://jobs/")
		raw, ok := snaps.Get(fmt.Sprintf("jobs/%s.html", j.ID))
		require.True(t, ok)
		assert.Equal(t, "<html>page</html>", string(raw))
	}

	// nothing left to populate
	pending, err := st.ListUnpopulatedJobs(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPopulateExpiresGonePostings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	seedUnpopulated(t, st, "https://x/jobs/gone")

	a := &fakeAdapter{enrich: func(*jobs.Job) (bool, error) { return true, nil }}
	closed := 0
	p := NewPopulator(st, snapshot.NewMemory(), openFake(a, &closed), clock.Fixed{Time: fixedNow}, nil)

	populated, err := p.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, populated)

	expired, err := st.ListJobs(ctx, jobs.StatusExpired, 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.False(t, expired[0].Populated)

	events, err := st.ListEvents(ctx, expired[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, jobs.KindStatusChange, events[0].Kind)
	assert.Equal(t, jobs.StatusNew, events[0].OldStatus)
	assert.Equal(t, jobs.StatusExpired, events[0].NewStatus)
}

func TestPopulateContinuesPastEnrichFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	seedUnpopulated(t, st, "https://x/jobs/1", "https://x/jobs/2")

	calls := 0
	a := &fakeAdapter{enrich: func(job *jobs.Job) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("navigation exhausted")
		}
		job.Populated = true
		return false, nil
	}}
	closed := 0
	p := NewPopulator(st, nil, openFake(a, &closed), clock.Fixed{Time: fixedNow}, nil)

	populated, err := p.Run(ctx, "")
	require.Error(t, err)
	assert.Equal(t, 1, populated)
}

func TestPopulateUnknownParserSkipsItsJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	seedUnpopulated(t, st, "https://x/jobs/1")

	open := func(string) (adapter.Adapter, func(), error) {
		return nil, nil, errors.New("unknown source parser")
	}
	p := NewPopulator(st, nil, open, clock.Fixed{Time: fixedNow}, nil)

	populated, err := p.Run(ctx, "")
	require.Error(t, err)
	assert.Equal(t, 0, populated)

	// the job stays pending for a later run
	pending, err := st.ListUnpopulatedJobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

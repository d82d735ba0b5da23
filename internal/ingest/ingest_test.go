package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/notify"
	"github.com/jobsift/jobsift/internal/search"
	"github.com/jobsift/jobsift/internal/storage/memory"
)

type fakeCache struct {
	seen map[string]bool
}

func newFakeCache() *fakeCache { return &fakeCache{seen: make(map[string]bool)} }

func (c *fakeCache) Seen(_ context.Context, url string) (bool, error) {
	return c.seen[url], nil
}

func (c *fakeCache) MarkSeen(_ context.Context, url string) error {
	c.seen[url] = true
	return nil
}

func testTarget(t *testing.T, st *memory.Store) search.Target {
	t.Helper()
	ctx := context.Background()
	_, err := st.CreateSource(ctx, search.Source{Name: "LinkedIn", Parser: "linkedin"})
	require.NoError(t, err)
	_, err = st.CreateQuery(ctx, search.Query{Keywords: "go"})
	require.NoError(t, err)
	targets, err := st.ListTargets(ctx, "linkedin")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	return targets[0]
}

func testRecord(url string) jobs.Record {
	return jobs.Record{
		Company:    "Acme",
		CompanyURL: "https://x/acme",
		Title:      "Engineer",
		URL:        url,
		Location:   "Boston, MA",
		PostedAt:   time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		FoundAt:    time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
}

func TestAddCreatesJobOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	target := testTarget(t, st)
	pub := notify.NewMemory()
	ing := New(st, nil, pub, nil)

	created, err := ing.Add(ctx, testRecord("https://x/jobs/1"), target)
	require.NoError(t, err)
	assert.True(t, created)

	// same URL again is a no-op
	created, err = ing.Add(ctx, testRecord("https://x/jobs/1"), target)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := st.ListJobs(ctx, jobs.StatusNew, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	j := stored[0]
	assert.Equal(t, "Engineer", j.Title)
	assert.NotEqual(t, uuid.Nil, j.CompanyID)
	require.NotNil(t, j.LocationID)
	require.NotNil(t, j.TargetID)
	assert.Equal(t, target.ID, *j.TargetID)
	assert.False(t, j.Populated)

	// only the creating call publishes
	assert.Len(t, pub.Published(), 1)
}

func TestAddRejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	st := memory.New()
	target := testTarget(t, st)
	ing := New(st, nil, nil, nil)

	rec := testRecord("https://x/jobs/2")
	rec.Company = ""
	_, err := ing.Add(context.Background(), rec, target)
	require.Error(t, err)

	stored, err := st.ListJobs(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAddWithoutLocation(t *testing.T) {
	t.Parallel()

	st := memory.New()
	target := testTarget(t, st)
	ing := New(st, nil, nil, nil)

	rec := testRecord("https://x/jobs/3")
	rec.Location = ""
	created, err := ing.Add(context.Background(), rec, target)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := st.ListJobs(context.Background(), jobs.StatusNew, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].LocationID)
}

func TestAddUsesSeenCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	target := testTarget(t, st)
	cache := newFakeCache()
	ing := New(st, cache, nil, nil)

	created, err := ing.Add(ctx, testRecord("https://x/jobs/4"), target)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, cache.seen["https://x/jobs/4"])

	// a cache hit short-circuits before the store
	created, err = ing.Add(ctx, testRecord("https://x/jobs/4"), target)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestAddAllContinuesPastFailures(t *testing.T) {
	t.Parallel()

	st := memory.New()
	target := testTarget(t, st)
	ing := New(st, nil, nil, nil)

	bad := testRecord("https://x/jobs/bad")
	bad.Title = ""
	recs := []jobs.Record{
		testRecord("https://x/jobs/5"),
		bad,
		testRecord("https://x/jobs/6"),
	}

	created, err := ing.AddAll(context.Background(), recs, target)
	require.Error(t, err)
	assert.Equal(t, 2, created)
}

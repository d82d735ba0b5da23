package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNavigator struct {
	alive    bool
	creates  int
	destroys int
	visits   []func() (*Visit, error)
	calls    int
}

func (n *fakeNavigator) Alive() bool { return n.alive }

func (n *fakeNavigator) Create(context.Context) error {
	n.creates++
	n.alive = true
	return nil
}

func (n *fakeNavigator) Destroy() {
	n.destroys++
	n.alive = false
}

func (n *fakeNavigator) Navigate(context.Context, string) (*Visit, error) {
	defer func() { n.calls++ }()
	if n.calls < len(n.visits) {
		return n.visits[n.calls]()
	}
	return nil, errors.New("no scripted visit")
}

func testRetrier(nav Navigator, attempts int) *Retrier {
	return NewRetrier(nav, RetryConfig{
		Attempts:    attempts,
		BackoffBase: time.Millisecond,
	}, zap.NewNop())
}

func contentVisit(status int) func() (*Visit, error) {
	return func() (*Visit, error) {
		return &Visit{
			HTML:      "<html></html>",
			Exchanges: []Exchange{{URL: "https://site/jobs", Status: status}},
		}, nil
	}
}

func TestGetSucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{visits: []func() (*Visit, error){
		contentVisit(503),
		func() (*Visit, error) { return nil, errors.New("tab crashed") },
		contentVisit(200),
	}}
	r := testRetrier(nav, 8)

	resp, err := r.Get(context.Background(), "https://site/jobs", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "https://site/jobs", resp.URL)
	assert.Equal(t, "<html></html>", resp.HTML)
	// both failed attempts tore the session down and a fresh one was built
	// each time
	assert.Equal(t, 2, nav.destroys)
	assert.Equal(t, 3, nav.creates)
}

func TestGetExhaustionReportsLastStatus(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{visits: []func() (*Visit, error){
		contentVisit(404), contentVisit(404), contentVisit(404),
	}}
	r := testRetrier(nav, 3)

	_, err := r.Get(context.Background(), "https://site/jobs/view/1", nil)
	require.ErrorIs(t, err, ErrNoResponse)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 404, exhausted.LastStatus)
	assert.Equal(t, 3, nav.calls)
}

func TestGetExhaustionWithoutAnyResponse(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{visits: []func() (*Visit, error){
		func() (*Visit, error) { return &Visit{HTML: "<html></html>"}, nil },
		func() (*Visit, error) { return &Visit{HTML: "<html></html>"}, nil },
	}}
	r := testRetrier(nav, 2)

	_, err := r.Get(context.Background(), "https://site/jobs", nil)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 0, exhausted.LastStatus)
}

func TestGetHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{visits: []func() (*Visit, error){contentVisit(503)}}
	r := NewRetrier(nav, RetryConfig{Attempts: 8, BackoffBase: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Get(ctx, "https://site/jobs", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	var total time.Duration
	for attempt := 0; attempt < DefaultAttempts; attempt++ {
		total += BackoffDelay(time.Second, attempt)
	}
	// 1+2+4+...+128
	assert.Equal(t, 255*time.Second, total)
	assert.Equal(t, time.Second, BackoffDelay(time.Second, 0))
	assert.Equal(t, 8*time.Second, BackoffDelay(time.Second, 3))
}

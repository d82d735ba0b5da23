// Package notify announces newly discovered jobs to downstream consumers.
package notify

import (
	"context"
	"sync"

	"github.com/jobsift/jobsift/internal/jobs"
)

// Publisher delivers one message per newly created job. Implementations must
// tolerate being handed the same job more than once.
type Publisher interface {
	PublishJob(ctx context.Context, job jobs.Job) (id string, err error)
	Close() error
}

// Memory collects published jobs in process, for development and tests.
type Memory struct {
	mu        sync.Mutex
	published []jobs.Job
}

// NewMemory constructs an empty Memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// PublishJob records the job and returns its ID as the message id.
func (m *Memory) PublishJob(_ context.Context, job jobs.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, job)
	return job.ID.String(), nil
}

// Published returns a copy of everything published so far.
func (m *Memory) Published() []jobs.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobs.Job, len(m.published))
	copy(out, m.published)
	return out
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

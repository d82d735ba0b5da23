package snapshot

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory keeps snapshots in process and hands out memory:// URIs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Put stores the blob under path.
func (s *Memory) Put(_ context.Context, path, _ string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	s.mu.Lock()
	s.data[path] = raw
	s.mu.Unlock()
	return "memory://" + path, nil
}

// Get returns a stored blob, for tests.
func (s *Memory) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[path]
	return raw, ok
}

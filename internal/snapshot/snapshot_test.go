package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPut(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	uri, err := s.Put(context.Background(), "jobs/abc.html", "text/html", strings.NewReader("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "memory://jobs/abc.html", uri)

	raw, ok := s.Get("jobs/abc.html")
	require.True(t, ok)
	assert.Equal(t, "<html></html>", string(raw))
}

func TestLocalPut(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewLocal(dir)
	require.NoError(t, err)

	uri, err := s.Put(context.Background(), "jobs/abc.html", "text/html", strings.NewReader("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "jobs", "abc.html"), uri)

	raw, err := os.ReadFile(filepath.Join(dir, "jobs", "abc.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(raw))
}

func TestLocalPutRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../outside.html", "text/html", strings.NewReader("x"))
	require.Error(t, err)

	_, err = s.Put(context.Background(), "  ", "text/html", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewLocalCreatesBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "snaps")
	_, err := NewLocal(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

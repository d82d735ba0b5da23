package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 8, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.BackoffBase())
	assert.Equal(t, 45*time.Second, cfg.NavTimeout())
	assert.Equal(t, "memory", cfg.Snapshot.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "@every 6h", cfg.Scheduler.Spec)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  development: false
browser:
  proxy: socks5://127.0.0.1:9050
  nav_timeout_seconds: 30
retry:
  attempts: 4
  backoff_base_ms: 250
snapshot:
  backend: local
  base_dir: /tmp/snaps
db:
  dsn: postgres://jobsift:pw@localhost/jobsift
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "socks5://127.0.0.1:9050", cfg.Browser.Proxy)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout())
	assert.Equal(t, 4, cfg.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase())
	assert.Equal(t, "local", cfg.Snapshot.Backend)
	assert.Equal(t, "postgres://jobsift:pw@localhost/jobsift", cfg.DB.DSN)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Retry.Attempts = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Snapshot.Backend = "s3"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Snapshot.Backend = "local"
	bad.Snapshot.BaseDir = ""
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Snapshot.Backend = "gcs"
	bad.Snapshot.GCSBucket = ""
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Server.Port = 0
	require.Error(t, bad.Validate())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entsync/entsync/pkg/merge"
)

func TestLoadAbsentFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entsync.yaml")
	content := `
server:
  url: https://candlepin.example.com/candlepin
sync:
  conflict_policy: local
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "https://candlepin.example.com/candlepin", cfg.Server.URL)
	assert.Equal(t, merge.PreferLocal, cfg.Sync.ConflictPolicy)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Paths.Syspurpose, cfg.Paths.Syspurpose)
	assert.Equal(t, Default().Sync.CacheWriters, cfg.Sync.CacheWriters)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entsync.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := Default()
	cfg.Sync.ConflictPolicy = "newest"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyServerURL(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = ""
	assert.Error(t, cfg.Validate())
}

func TestCachePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.CacheDir = "/tmp/cache"
	assert.Equal(t, "/tmp/cache/status.json", cfg.CachePath("status.json"))
	assert.Equal(t, "/tmp/cache/syspurpose.json", cfg.SyspurposeCachePath())
}

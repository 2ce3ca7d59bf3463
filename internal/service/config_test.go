package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
addr: "127.0.0.1:9999"
num_streams: 8
memory_capacity_mb: 4096
cleanup_interval_s: 120
prefer_gpu: false
allow_cpu_fallback: true
log_level: "debug"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, 8, cfg.NumStreams)
	assert.Equal(t, int64(4096), cfg.MemoryCapacityMB)
	assert.Equal(t, 120, cfg.CleanupIntervalS)
	assert.False(t, cfg.PreferGPU)
}

func TestLoadConfig_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, `
addr: "127.0.0.1:5555"
typo_field: true
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDefaultConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "127.0.0.1:5555", cfg.Addr)
	assert.Equal(t, 300, cfg.CleanupIntervalS)
}

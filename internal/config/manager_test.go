package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestManager_Status(t *testing.T) {
	path := writeConfigFile(t, "thresholds:\n  hit_cut: 0.9\n  diff_cut: 0.7\n")

	mgr, err := NewManager(path, nil)
	require.NoError(t, err)

	status := mgr.Status()
	assert.Equal(t, path, status.Path)
	assert.NotEmpty(t, status.Checksum)
	assert.False(t, status.LoadedAt.IsZero())
	assert.Equal(t, uint64(1), status.ReloadCount)
	assert.Equal(t, 0.9, mgr.Get().Thresholds.HitCut)
}

func TestManager_ReloadUpdatesChecksumAndNotifiesListeners(t *testing.T) {
	path := writeConfigFile(t, "thresholds:\n  hit_cut: 0.9\n  diff_cut: 0.7\n")

	mgr, err := NewManager(path, nil)
	require.NoError(t, err)
	before := mgr.Status()

	var notified *Config
	mgr.OnChange(func(c *Config) { notified = c })

	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  hit_cut: 0.88\n  diff_cut: 0.6\n"), 0o644))
	require.NoError(t, mgr.Reload())

	after := mgr.Status()
	assert.NotEqual(t, before.Checksum, after.Checksum)
	assert.Equal(t, before.ReloadCount+1, after.ReloadCount)
	assert.Equal(t, 0.88, mgr.Get().Thresholds.HitCut)
	require.NotNil(t, notified)
	assert.Equal(t, 0.88, notified.Thresholds.HitCut)
}

func TestManager_ReloadPropagatesLoadErrors(t *testing.T) {
	path := writeConfigFile(t, "thresholds:\n  hit_cut: 0.9\n  diff_cut: 0.7\n")
	mgr, err := NewManager(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	assert.Error(t, mgr.Reload())
	// the last good config is still served
	assert.Equal(t, 0.9, mgr.Get().Thresholds.HitCut)
}

func TestManager_CloseWithoutWatchIsNoop(t *testing.T) {
	path := writeConfigFile(t, "thresholds:\n  hit_cut: 0.9\n  diff_cut: 0.7\n")
	mgr, err := NewManager(path, nil)
	require.NoError(t, err)
	assert.NoError(t, mgr.Close())
}

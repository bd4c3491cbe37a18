package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0.92, cfg.MemoryLimit)
	assert.Equal(t, 0.85, cfg.Thresholds.HitCut)
	assert.Equal(t, 0.65, cfg.Thresholds.DiffCut)
	assert.Equal(t, 8, cfg.Storage.NumShards)
	assert.Equal(t, 5, cfg.Prefetch.MaxItems)
	assert.Equal(t, int64(10), cfg.Promotion.Threshold)
	assert.False(t, cfg.ColdOverflow.Enable)
	assert.False(t, cfg.Tracing.Enable)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ClampsOutOfRangeFields(t *testing.T) {
	cfg := Default()
	cfg.MemoryLimit = 5
	cfg.Decision.UncertaintyThreshold = 0.9
	cfg.Storage.NumShards = 0
	cfg.Prefetch.MaxItems = -1
	cfg.Ensemble.BatchSize = 0

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.92, cfg.MemoryLimit)
	assert.Equal(t, 0.3, cfg.Decision.UncertaintyThreshold)
	assert.Equal(t, 8, cfg.Storage.NumShards)
	assert.Equal(t, 5, cfg.Prefetch.MaxItems)
	assert.Equal(t, 32, cfg.Ensemble.BatchSize)
}

func TestValidate_RejectsInvalidThresholdGap(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.HitCut = 0.5
	cfg.Thresholds.DiffCut = 0.49
	assert.Error(t, cfg.Validate())
}

func TestLoad_ReadsYAMLAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "thresholds:\n  hit_cut: 0.9\n  diff_cut: 0.7\nstorage:\n  num_shards: 16\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Thresholds.HitCut)
	assert.Equal(t, 0.7, cfg.Thresholds.DiffCut)
	assert.Equal(t, 16, cfg.Storage.NumShards)
	// untouched fields keep their defaults
	assert.Equal(t, 5, cfg.Prefetch.MaxItems)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

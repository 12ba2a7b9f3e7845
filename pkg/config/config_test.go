package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvOverlaysSetVariablesOnly(t *testing.T) {
	t.Setenv("SIMCORE_TICK_INTERVAL_MS", "200")
	t.Setenv("SIMCORE_SNAPSHOT_ON_TICK", "delta")

	cfg, err := FromEnv(DefaultContainerConfig())
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.TickIntervalMS)
	assert.Equal(t, SnapshotDelta, cfg.SnapshotOnTick)
	assert.Equal(t, DefaultContainerConfig().QueryCacheCapacity, cfg.QueryCacheCapacity)
}

func TestFromEnvRejectsUnparseableInt(t *testing.T) {
	t.Setenv("SIMCORE_QUERY_CACHE_CAPACITY", "not-a-number")

	_, err := FromEnv(DefaultContainerConfig())
	assert.Error(t, err)
}

func TestDefaultContainerConfigDisablesSinkPersistence(t *testing.T) {
	cfg := DefaultContainerConfig()
	assert.Equal(t, SnapshotNone, cfg.SnapshotOnTick)
}

// Package config holds the small, per-subsystem configuration structs
// simcore components take at construction, following the teacher's
// pattern (manager.Config, worker.Config) of a plain struct per
// subsystem rather than one global config object.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// SnapshotMode controls whether a Container automatically persists
// snapshots through its snapshot sink as ticks complete.
type SnapshotMode string

const (
	SnapshotNone  SnapshotMode = "none"
	SnapshotFull  SnapshotMode = "full"
	SnapshotDelta SnapshotMode = "delta"
)

// ContainerConfig configures a Container's bounded resources and
// optional auto-persistence behavior.
type ContainerConfig struct {
	// TickIntervalMS is the auto-advance period in milliseconds. 0
	// disables auto-advance; ticks then only happen on manual Advance.
	TickIntervalMS int

	// SnapshotOnTick selects what a Container persists to its snapshot
	// sink (if one is attached) after every completed tick.
	SnapshotOnTick SnapshotMode

	// CommandErrorLogSize bounds the ring buffer of handler errors kept
	// for introspection.
	CommandErrorLogSize int

	// QueryCacheCapacity bounds the number of distinct component-set
	// queries the store's QueryCache remembers.
	QueryCacheCapacity int

	// TickListenerPoolSize bounds how many tick-complete events a single
	// slow subscriber may have queued before the broker starts dropping
	// events for it.
	TickListenerPoolSize int

	// SnapshotSinkQueueDepth bounds the snapshot sink's background write
	// queue; beyond this the sink drops the oldest queued snapshot.
	SnapshotSinkQueueDepth int
}

// DefaultContainerConfig returns the defaults a newly created container
// uses when the caller supplies no overrides.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		TickIntervalMS:         50,
		SnapshotOnTick:         SnapshotNone,
		CommandErrorLogSize:    64,
		QueryCacheCapacity:     256,
		TickListenerPoolSize:   50,
		SnapshotSinkQueueDepth: 256,
	}
}

// FromEnv overlays cfg with any SIMCORE_* environment variables that are
// set, leaving fields whose variable is unset untouched. It returns an
// error if a set variable fails to parse.
func FromEnv(cfg ContainerConfig) (ContainerConfig, error) {
	if v, ok := os.LookupEnv("SIMCORE_TICK_INTERVAL_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config.FromEnv: SIMCORE_TICK_INTERVAL_MS: %w", err)
		}
		cfg.TickIntervalMS = n
	}
	if v, ok := os.LookupEnv("SIMCORE_SNAPSHOT_ON_TICK"); ok {
		cfg.SnapshotOnTick = SnapshotMode(v)
	}
	if v, ok := os.LookupEnv("SIMCORE_COMMAND_ERROR_LOG_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config.FromEnv: SIMCORE_COMMAND_ERROR_LOG_SIZE: %w", err)
		}
		cfg.CommandErrorLogSize = n
	}
	if v, ok := os.LookupEnv("SIMCORE_QUERY_CACHE_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config.FromEnv: SIMCORE_QUERY_CACHE_CAPACITY: %w", err)
		}
		cfg.QueryCacheCapacity = n
	}
	if v, ok := os.LookupEnv("SIMCORE_TICK_LISTENER_POOL_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config.FromEnv: SIMCORE_TICK_LISTENER_POOL_SIZE: %w", err)
		}
		cfg.TickListenerPoolSize = n
	}
	if v, ok := os.LookupEnv("SIMCORE_SNAPSHOT_SINK_QUEUE_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config.FromEnv: SIMCORE_SNAPSHOT_SINK_QUEUE_DEPTH: %w", err)
		}
		cfg.SnapshotSinkQueueDepth = n
	}
	return cfg, nil
}

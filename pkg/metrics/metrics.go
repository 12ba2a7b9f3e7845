package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Container metrics
	ContainersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simcore_containers_total",
			Help: "Total number of containers by state",
		},
		[]string{"state"},
	)

	MatchesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simcore_matches_total",
			Help: "Total number of live matches across all containers",
		},
	)

	// ComponentPool metrics
	EntitiesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simcore_entities_total",
			Help: "Live entities in a container's pool",
		},
		[]string{"container_id"},
	)

	RowsInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simcore_pool_rows_in_use",
			Help: "Occupied rows in the component pool",
		},
		[]string{"container_id"},
	)

	RowsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simcore_pool_rows_total",
			Help: "Allocated rows in the component pool, including free ones",
		},
		[]string{"container_id"},
	)

	ComponentVersionBumps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_component_version_bumps_total",
			Help: "Writes that changed a component's presence or value",
		},
		[]string{"container_id", "component"},
	)

	// QueryCache metrics
	QueryCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_query_cache_hits_total",
			Help: "Query cache lookups served from a version-valid cache entry",
		},
		[]string{"container_id"},
	)

	QueryCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_query_cache_misses_total",
			Help: "Query cache lookups that required recomputation",
		},
		[]string{"container_id"},
	)

	QueryCacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_query_cache_evictions_total",
			Help: "Query cache entries evicted under the LRU bound",
		},
		[]string{"container_id"},
	)

	// DirtyTracker / snapshot metrics
	DirtySetSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simcore_dirty_set_size",
			Help: "Accumulated dirty entities for a match since its last delta",
		},
		[]string{"container_id", "match_id"},
	)

	SnapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simcore_snapshot_duration_seconds",
			Help:    "Time taken to build a snapshot or delta",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"container_id", "kind"},
	)

	SnapshotCompressionRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simcore_snapshot_compression_ratio",
			Help:    "changeCount / (entities_in_full_snapshot * components_per_entity) for deltas",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
		},
		[]string{"container_id"},
	)

	SnapshotSinkDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_snapshot_sink_dropped_total",
			Help: "Snapshots dropped by the persistence sink's bounded queue",
		},
		[]string{"container_id"},
	)

	// CommandQueue metrics
	CommandsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_commands_enqueued_total",
			Help: "Commands accepted into the queue",
		},
		[]string{"container_id", "command"},
	)

	CommandsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_commands_rejected_total",
			Help: "Commands rejected at enqueue time for schema mismatch",
		},
		[]string{"container_id", "command"},
	)

	CommandHandlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_command_handler_errors_total",
			Help: "Domain errors raised by command handlers during drain",
		},
		[]string{"container_id", "command"},
	)

	CommandQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simcore_command_queue_depth",
			Help: "Commands currently queued, awaiting the next drain",
		},
		[]string{"container_id"},
	)

	// TickController metrics
	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simcore_tick_duration_seconds",
			Help:    "Wall time for one full tick cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"container_id"},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_ticks_total",
			Help: "Ticks completed by a container",
		},
		[]string{"container_id"},
	)

	TicksSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_ticks_skipped_total",
			Help: "Auto-advance cycles skipped because the previous tick was still running",
		},
		[]string{"container_id"},
	)

	SystemFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_system_failures_total",
			Help: "Fatal system errors that aborted a tick and held the container",
		},
		[]string{"container_id", "system"},
	)
)

func init() {
	prometheus.MustRegister(ContainersTotal)
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(EntitiesTotal)
	prometheus.MustRegister(RowsInUse)
	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(ComponentVersionBumps)
	prometheus.MustRegister(QueryCacheHits)
	prometheus.MustRegister(QueryCacheMisses)
	prometheus.MustRegister(QueryCacheEvictions)
	prometheus.MustRegister(DirtySetSize)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(SnapshotCompressionRatio)
	prometheus.MustRegister(SnapshotSinkDropped)
	prometheus.MustRegister(CommandsEnqueued)
	prometheus.MustRegister(CommandsRejected)
	prometheus.MustRegister(CommandHandlerErrors)
	prometheus.MustRegister(CommandQueueDepth)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TicksSkipped)
	prometheus.MustRegister(SystemFailuresTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

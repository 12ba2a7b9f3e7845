/*
Package metrics defines and registers the Prometheus metrics exposed by a
simulation process.

Metrics are grouped by the component that owns them: the container
registry, the per-container component pool, the query cache, the dirty
tracker and snapshotter, the command queue, and the tick controller.
Each group is a package-level var block in metrics.go, registered once
at init via prometheus.MustRegister. Handler() serves them in the
standard Prometheus text exposition format.

	┌──────────────── METRICS SYSTEM ────────────────┐
	│                                                  │
	│  containermanager ─┐                            │
	│  pool/querycache ──┼─► prometheus registry       │
	│  dirty/snapshot ───┤        │                    │
	│  command/tick ─────┘        ▼                    │
	│                      Handler() (/metrics)        │
	└──────────────────────────────────────────────────┘

Most metrics are updated inline by the package that owns the
underlying state change (a version bump, a cache hit, a tick
completing). Collector is the one poll-driven exception: it samples
process-wide container/match counts from a ContainerSource on a fixed
interval, since those counts have no single call site to update them
inline.

Timer is a small helper for observing operation durations into a
histogram or histogram vector without each caller tracking its own
start time.
*/
package metrics

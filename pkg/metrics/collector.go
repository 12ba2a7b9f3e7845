package metrics

import "time"

// ContainerSource is the narrow view a Collector needs of the running
// process-wide container registry. Defined here (rather than imported
// from pkg/containermanager) so metrics has no dependency on the
// container packages; containermanager.Manager satisfies this
// structurally.
type ContainerSource interface {
	ContainerStateCounts() map[string]int
	MatchCount() int
}

// Collector periodically samples process-wide gauges from a
// ContainerSource, mirroring the teacher's periodic sampling loop
// that fed cluster-wide node/service/raft gauges from the manager.
type Collector struct {
	source ContainerSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(source ContainerSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for state, count := range c.source.ContainerStateCounts() {
		ContainersTotal.WithLabelValues(state).Set(float64(count))
	}
	MatchesTotal.Set(float64(c.source.MatchCount()))
}

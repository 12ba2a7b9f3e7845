// Package snapshot builds full and delta views of a match's state from the
// store, in the deterministic wire shape: entities sorted by id, modules in
// registration-insertion order, components columnar within a module.
package snapshot

import (
	"sort"

	"github.com/matchforge/simcore/pkg/dirty"
	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/types"
)

// Source is the narrow view of the store a Snapshotter reads from.
type Source interface {
	EntitiesInMatch(m types.MatchId) []types.EntityId
	Get(e types.EntityId, c types.ComponentId) (float64, bool)
	ModulesInOrder() []string
	ComponentsOfModule(module string) []types.ComponentId
	ComponentName(c types.ComponentId) (string, bool)
	TakeDirty(m types.MatchId) dirty.Snapshot
}

// Full is a columnar snapshot of a match's entire state at a tick.
type Full struct {
	MatchID types.MatchId
	Tick    uint64
	// Modules is ordered module -> component columns -> values, one value
	// per entity in Entities, nil meaning the absent sentinel.
	Modules []ModuleColumns
	// Entities is the deterministic (sorted by id) entity order backing
	// every column in Modules.
	Entities []types.EntityId
}

// ModuleColumns holds one module's component columns for a Full snapshot.
type ModuleColumns struct {
	Module     string
	Components []ComponentColumn
}

// ComponentColumn is one component's values, aligned with Full.Entities.
type ComponentColumn struct {
	Name   string
	Values []*float64
}

// Delta is the minimal diff between two ticks of a match's state.
type Delta struct {
	MatchID         types.MatchId
	FromTick        uint64
	ToTick          uint64
	AddedEntities   []types.EntityId
	RemovedEntities []types.EntityId
	// ChangedComponents is module name -> component name -> entity id ->
	// current value.
	ChangedComponents map[string]map[string]map[types.EntityId]float64
	ChangeCount       int
}

// Snapshotter builds Full and Delta views from a Source.
type Snapshotter struct {
	containerID string
	source      Source
}

// New creates a Snapshotter reading from source.
func New(containerID string, source Source) *Snapshotter {
	return &Snapshotter{containerID: containerID, source: source}
}

// Full builds a full snapshot of match m at tick.
func (s *Snapshotter) Full(m types.MatchId, tick uint64) Full {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SnapshotDuration, s.containerID, "full")

	entities := s.source.EntitiesInMatch(m)

	out := Full{MatchID: m, Tick: tick, Entities: entities}
	for _, module := range s.source.ModulesInOrder() {
		mc := ModuleColumns{Module: module}
		for _, c := range s.source.ComponentsOfModule(module) {
			name, _ := s.source.ComponentName(c)
			values := make([]*float64, len(entities))
			for i, e := range entities {
				if v, ok := s.source.Get(e, c); ok {
					vv := v
					values[i] = &vv
				}
			}
			mc.Components = append(mc.Components, ComponentColumn{Name: name, Values: values})
		}
		out.Modules = append(out.Modules, mc)
	}
	return out
}

// Delta builds the diff for match m between fromTick and toTick, consuming
// the match's accumulated dirty window. toTick should be the tick at which
// this call is made; it is caller-supplied rather than derived, since the
// snapshotter has no tick source of its own.
func (s *Snapshotter) Delta(m types.MatchId, fromTick, toTick uint64) Delta {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SnapshotDuration, s.containerID, "delta")

	window := s.source.TakeDirty(m)

	out := Delta{
		MatchID:           m,
		FromTick:          fromTick,
		ToTick:            toTick,
		ChangedComponents: make(map[string]map[string]map[types.EntityId]float64),
	}

	out.AddedEntities = sortedCopy(window.Added)
	out.RemovedEntities = sortedCopy(window.Removed)

	moduleOf := make(map[types.ComponentId]string)
	nameOf := make(map[types.ComponentId]string)
	for _, module := range s.source.ModulesInOrder() {
		for _, c := range s.source.ComponentsOfModule(module) {
			moduleOf[c] = module
			name, _ := s.source.ComponentName(c)
			nameOf[c] = name
		}
	}

	for _, cc := range window.ChangedCells {
		v, ok := s.source.Get(cc.Entity, cc.Component)
		if !ok {
			continue
		}
		module, ok := moduleOf[cc.Component]
		if !ok {
			continue
		}
		name := nameOf[cc.Component]
		if out.ChangedComponents[module] == nil {
			out.ChangedComponents[module] = make(map[string]map[types.EntityId]float64)
		}
		if out.ChangedComponents[module][name] == nil {
			out.ChangedComponents[module][name] = make(map[types.EntityId]float64)
		}
		out.ChangedComponents[module][name][cc.Entity] = v
		out.ChangeCount++
	}
	out.ChangeCount += len(out.AddedEntities) + len(out.RemovedEntities)

	if ratio := compressionRatio(out, s); ratio >= 0 {
		metrics.SnapshotCompressionRatio.WithLabelValues(s.containerID).Observe(ratio)
	}
	return out
}

func compressionRatio(d Delta, s *Snapshotter) float64 {
	entities := s.source.EntitiesInMatch(d.MatchID)
	componentCount := 0
	for _, module := range s.source.ModulesInOrder() {
		componentCount += len(s.source.ComponentsOfModule(module))
	}
	denom := len(entities) * componentCount
	if denom == 0 {
		return -1
	}
	return float64(d.ChangeCount) / float64(denom)
}

func sortedCopy(ids []types.EntityId) []types.EntityId {
	out := append([]types.EntityId(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

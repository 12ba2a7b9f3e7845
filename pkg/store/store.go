// Package store composes the component pool, query cache, and dirty
// tracker behind one API with a single-writer/many-reader discipline: the
// simulation worker is the sole writer during a tick, while snapshot reads
// and queries run concurrently as readers.
package store

import (
	"sort"
	"sync"

	"github.com/matchforge/simcore/pkg/dirty"
	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/pool"
	"github.com/matchforge/simcore/pkg/querycache"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// componentMeta tracks a registered component's declaring module and
// permission level, consulted on every write.
type componentMeta struct {
	owner      string
	permission types.PermissionLevel
}

// Store is the facade every system and command handler writes through.
type Store struct {
	mu          sync.RWMutex
	containerID string

	pool  *pool.Pool
	cache *querycache.QueryCache
	dirty *dirty.Tracker

	meta map[types.ComponentId]componentMeta

	moduleOrder      []string
	moduleSeen       map[string]bool
	componentsByMod  map[string][]types.ComponentId

	matchIDComponent types.ComponentId
	entityMatch      map[types.EntityId]types.MatchId
}

// Config configures the store's bounded resources.
type Config struct {
	QueryCacheCapacity int
}

// New creates an empty store for one container.
func New(containerID string, cfg Config) *Store {
	p := pool.New()
	s := &Store{
		containerID:     containerID,
		pool:            p,
		dirty:           dirty.New(),
		meta:            make(map[types.ComponentId]componentMeta),
		moduleSeen:      make(map[string]bool),
		componentsByMod: make(map[string][]types.ComponentId),
		entityMatch:     make(map[types.EntityId]types.MatchId),
	}
	s.cache = querycache.New(p, containerID, cfg.QueryCacheCapacity)
	s.matchIDComponent = p.RegisterComponent("MATCH_ID")
	s.meta[s.matchIDComponent] = componentMeta{owner: "core", permission: types.PermissionWrite}
	return s
}

// RegisterComponent declares a new component owned by module, with the
// given permission level. Re-registering an existing name returns its
// existing id without changing ownership.
func (s *Store) RegisterComponent(module, name string, perm types.PermissionLevel) types.ComponentId {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.pool.RegisterComponent(name)
	if _, exists := s.meta[id]; !exists {
		s.meta[id] = componentMeta{owner: module, permission: perm}
		if !s.moduleSeen[module] {
			s.moduleSeen[module] = true
			s.moduleOrder = append(s.moduleOrder, module)
		}
		s.componentsByMod[module] = append(s.componentsByMod[module], id)
	}
	return id
}

// ComponentID looks up a registered component by name.
func (s *Store) ComponentID(name string) (types.ComponentId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.ComponentID(name)
}

// SpawnEntity creates an entity in match m, tagging it with the match-id
// component and recording it as added in the match's dirty window.
func (s *Store) SpawnEntity(m types.MatchId) types.EntityId {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.pool.CreateEntity()
	_ = s.pool.Set(e, s.matchIDComponent, float64(m))
	s.entityMatch[e] = m
	s.dirty.MarkCreated(m, e)
	metrics.EntitiesTotal.WithLabelValues(s.containerID).Set(float64(s.pool.EntityCount()))
	metrics.RowsInUse.WithLabelValues(s.containerID).Set(float64(s.pool.RowsInUse()))
	metrics.RowsTotal.WithLabelValues(s.containerID).Set(float64(s.pool.RowsTotal()))
	return e
}

// DestroyEntity destroys e, recording it as removed in its match's dirty
// window (or reconciling away a transient spawn within the same window).
func (s *Store) DestroyEntity(e types.EntityId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyEntityLocked(e)
}

func (s *Store) destroyEntityLocked(e types.EntityId) error {
	m, ok := s.entityMatch[e]
	if !ok {
		return simerr.New(simerr.UnknownEntity, "store.DestroyEntity", nil)
	}
	if err := s.pool.DestroyEntity(e); err != nil {
		return err
	}
	delete(s.entityMatch, e)
	s.dirty.MarkDestroyed(m, e)
	metrics.EntitiesTotal.WithLabelValues(s.containerID).Set(float64(s.pool.EntityCount()))
	metrics.RowsInUse.WithLabelValues(s.containerID).Set(float64(s.pool.RowsInUse()))
	return nil
}

// DeleteMatch destroys every entity belonging to m, cascading exactly once
// per entity.
func (s *Store) DeleteMatch(m types.MatchId) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []types.EntityId
	for e, em := range s.entityMatch {
		if em == m {
			members = append(members, e)
		}
	}
	for _, e := range members {
		_ = s.destroyEntityLocked(e)
	}
	s.dirty.DropMatch(m)
}

// Set writes value to (e, c) on behalf of module, consulting the
// component's permission level first.
func (s *Store) Set(module string, e types.EntityId, c types.ComponentId, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.meta[c]
	if !ok {
		return simerr.New(simerr.UnknownComponent, "store.Set", nil)
	}
	if meta.permission != types.PermissionWrite && meta.owner != module {
		return simerr.New(simerr.PermissionDenied, "store.Set", nil)
	}

	before := s.pool.Version(c)
	if err := s.pool.Set(e, c, value); err != nil {
		return err
	}
	if s.pool.Version(c) == before {
		// Same value rewritten: nothing changed, nothing to record.
		return nil
	}

	if m, ok := s.entityMatch[e]; ok {
		s.dirty.MarkChanged(m, e, c)
	}
	metrics.ComponentVersionBumps.WithLabelValues(s.containerID, componentLabel(c, s.pool)).Inc()
	return nil
}

// Unset clears (e, c) on behalf of module, subject to the same permission
// check as Set.
func (s *Store) Unset(module string, e types.EntityId, c types.ComponentId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.meta[c]
	if !ok {
		return simerr.New(simerr.UnknownComponent, "store.Unset", nil)
	}
	if meta.permission != types.PermissionWrite && meta.owner != module {
		return simerr.New(simerr.PermissionDenied, "store.Unset", nil)
	}

	before := s.pool.Has(e, c)
	if err := s.pool.Unset(e, c); err != nil {
		return err
	}
	if before {
		if m, ok := s.entityMatch[e]; ok {
			s.dirty.MarkChanged(m, e, c)
		}
		metrics.ComponentVersionBumps.WithLabelValues(s.containerID, componentLabel(c, s.pool)).Inc()
	}
	return nil
}

// Get reads (e, c); readers never block the writer for longer than the
// lock's critical section.
func (s *Store) Get(e types.EntityId, c types.ComponentId) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Get(e, c)
}

// Has reports whether (e, c) is present.
func (s *Store) Has(e types.EntityId, c types.ComponentId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Has(e, c)
}

// Query returns every live entity with all of components, served from the
// query cache when possible.
func (s *Store) Query(components ...types.ComponentId) []types.EntityId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Query(components)
}

// EntitiesInMatch returns every live entity tagged with match m, sorted by
// id for deterministic snapshot ordering.
func (s *Store) EntitiesInMatch(m types.MatchId) []types.EntityId {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.EntityId
	for e, em := range s.entityMatch {
		if em == m {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnsetComponentForAll clears c's cell on every live entity in one sweep
// and drops its registration metadata. Used by the module registry when a
// reload no longer declares a component that a previous module owned.
func (s *Store) UnsetComponentForAll(c types.ComponentId) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for e, m := range s.entityMatch {
		if !s.pool.Has(e, c) {
			continue
		}
		_ = s.pool.Unset(e, c)
		s.dirty.MarkChanged(m, e, c)
	}

	if meta, ok := s.meta[c]; ok {
		comps := s.componentsByMod[meta.owner]
		for i, cid := range comps {
			if cid == c {
				s.componentsByMod[meta.owner] = append(comps[:i], comps[i+1:]...)
				break
			}
		}
	}
	delete(s.meta, c)
}

// ModulesInOrder returns every module that has registered at least one
// component still tracked, in first-registration order.
func (s *Store) ModulesInOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.moduleOrder))
	for _, m := range s.moduleOrder {
		if len(s.componentsByMod[m]) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// ComponentsOfModule returns module's currently registered components, in
// registration order.
func (s *Store) ComponentsOfModule(module string) []types.ComponentId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ComponentId(nil), s.componentsByMod[module]...)
}

// TakeDirty returns and resets match m's accumulated dirty window.
func (s *Store) TakeDirty(m types.MatchId) dirty.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty.Take(m)
}

// Pool exposes the underlying pool for read-only consumers that need
// lookups beyond this facade. It takes no lock of its own.
func (s *Store) Pool() *pool.Pool {
	return s.pool
}

// ComponentName returns the registered name for a component id.
func (s *Store) ComponentName(c types.ComponentId) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.ComponentName(c)
}

// ComponentOwner returns the module name that registered c.
func (s *Store) ComponentOwner(c types.ComponentId) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[c]
	if !ok {
		return "", false
	}
	return meta.owner, true
}

func componentLabel(c types.ComponentId, p *pool.Pool) string {
	if name, ok := p.ComponentName(c); ok {
		return name
	}
	return "unknown"
}

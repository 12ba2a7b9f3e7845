// Package querycache caches component-set query results, keyed by the
// sorted set of component ids in the query, and invalidates lazily by
// comparing the pool's current column versions against the versions
// recorded when the entry was computed.
package querycache

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/types"
)

// Pool is the narrow view of the component pool a QueryCache needs to
// recompute a miss.
type Pool interface {
	Version(c types.ComponentId) uint64
	Count(c types.ComponentId) uint64
	AllWith(c types.ComponentId) []types.EntityId
	Has(e types.EntityId, c types.ComponentId) bool
}

type key string

type entry struct {
	components []types.ComponentId
	versions   []uint64
	result     []types.EntityId
	hits       uint64
}

// QueryCache caches Query results for one container's pool.
type QueryCache struct {
	mu          sync.Mutex
	pool        Pool
	containerID string
	cache       *lru.Cache[key, *entry]
}

// New creates a QueryCache bounded to capacity entries. containerID labels
// the hit/miss/eviction metrics this cache reports.
func New(pool Pool, containerID string, capacity int) *QueryCache {
	qc := &QueryCache{pool: pool, containerID: containerID}
	c, err := lru.NewWithEvict[key, *entry](capacity, func(key, *entry) {
		metrics.QueryCacheEvictions.WithLabelValues(containerID).Inc()
	})
	if err != nil {
		// Only returns an error for capacity <= 0; callers are expected to
		// pass a positive configured capacity.
		c, _ = lru.New[key, *entry](1)
	}
	qc.cache = c
	return qc
}

// Query returns every live entity that has all of components, using a
// cached result when every involved component's version still matches
// what was recorded at computation time.
func (qc *QueryCache) Query(components []types.ComponentId) []types.EntityId {
	sorted := append([]types.ComponentId(nil), components...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	k := makeKey(sorted)

	qc.mu.Lock()
	defer qc.mu.Unlock()

	if e, ok := qc.cache.Get(k); ok && qc.versionsMatch(e) {
		e.hits++
		metrics.QueryCacheHits.WithLabelValues(qc.containerID).Inc()
		return append([]types.EntityId(nil), e.result...)
	}

	metrics.QueryCacheMisses.WithLabelValues(qc.containerID).Inc()
	result := qc.recompute(sorted)
	versions := make([]uint64, len(sorted))
	for i, c := range sorted {
		versions[i] = qc.pool.Version(c)
	}
	qc.cache.Add(k, &entry{components: sorted, versions: versions, result: result})
	return append([]types.EntityId(nil), result...)
}

func (qc *QueryCache) versionsMatch(e *entry) bool {
	for i, c := range e.components {
		if qc.pool.Version(c) != e.versions[i] {
			return false
		}
	}
	return true
}

// recompute intersects the smallest candidate column against Has checks
// for the rest, avoiding a full scan of the largest column.
func (qc *QueryCache) recompute(components []types.ComponentId) []types.EntityId {
	if len(components) == 0 {
		return nil
	}

	smallest := components[0]
	smallestCount := qc.pool.Count(smallest)
	for _, c := range components[1:] {
		if n := qc.pool.Count(c); n < smallestCount {
			smallest = c
			smallestCount = n
		}
	}

	candidates := qc.pool.AllWith(smallest)
	var out []types.EntityId
	for _, e := range candidates {
		match := true
		for _, c := range components {
			if c == smallest {
				continue
			}
			if !qc.pool.Has(e, c) {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
		}
	}
	return out
}

func makeKey(sorted []types.ComponentId) key {
	var b strings.Builder
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return key(b.String())
}

// Len returns the number of cached entries.
func (qc *QueryCache) Len() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return qc.cache.Len()
}

// Purge empties the cache, used on module reload when component ids can be
// reassigned.
func (qc *QueryCache) Purge() {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.cache.Purge()
}

// Package containermanager owns the process-wide set of isolated
// Containers: creation, lookup, listing, and destruction. It satisfies
// metrics.ContainerSource so the metrics collector can poll container
// and match counts without importing this package.
package containermanager

import (
	"sync"

	"github.com/google/uuid"
	"github.com/matchforge/simcore/pkg/container"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// Manager is the process-wide container registry.
type Manager struct {
	mu         sync.RWMutex
	containers map[types.ContainerId]*container.Container
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{containers: make(map[types.ContainerId]*container.Container)}
}

// Create allocates a new container with a generated id and the given
// config, and registers it in the manager. It does not Start the
// container; callers decide when to move it into RUNNING.
func (m *Manager) Create(cfg container.Config) *container.Container {
	return m.CreateWithOptions(cfg)
}

// CreateWithOptions is Create with additional construction-time options,
// e.g. container.WithSnapshotSink.
func (m *Manager) CreateWithOptions(cfg container.Config, opts ...container.Option) *container.Container {
	id := types.ContainerId(uuid.NewString())

	m.mu.Lock()
	defer m.mu.Unlock()
	c := container.New(id, cfg, opts...)
	m.containers[id] = c
	return c
}

// Get looks up a container by id.
func (m *Manager) Get(id types.ContainerId) (*container.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[id]
	if !ok {
		return nil, simerr.New(simerr.UnknownContainer, "containermanager.Get", nil)
	}
	return c, nil
}

// List returns every container currently registered.
func (m *Manager) List() []*container.Container {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*container.Container, 0, len(m.containers))
	for _, c := range m.containers {
		out = append(out, c)
	}
	return out
}

// Destroy stops and removes a container. It is a no-op if the id is
// unknown.
func (m *Manager) Destroy(id types.ContainerId) error {
	m.mu.Lock()
	c, ok := m.containers[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.containers, id)
	m.mu.Unlock()

	return c.Stop()
}

// ContainerStateCounts implements metrics.ContainerSource.
func (m *Manager) ContainerStateCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range m.containers {
		counts[string(c.State())]++
	}
	return counts
}

// MatchCount implements metrics.ContainerSource: the sum of live matches
// across every registered container.
func (m *Manager) MatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, c := range m.containers {
		total += c.Matches().Count()
	}
	return total
}

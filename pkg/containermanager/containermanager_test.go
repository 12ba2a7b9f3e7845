package containermanager

import (
	"testing"

	"github.com/matchforge/simcore/pkg/container"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() container.Config {
	cfg := container.DefaultConfig()
	cfg.TickIntervalMS = 0
	return cfg
}

func TestCreateAndGet(t *testing.T) {
	m := New()
	c := m.Create(testConfig())

	got, err := m.Get(c.ID())
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestGetUnknownContainer(t *testing.T) {
	m := New()
	_, err := m.Get("does-not-exist")
	require.Error(t, err)
	assert.True(t, simerr.Is(err, simerr.UnknownContainer))
}

func TestListReturnsAllCreated(t *testing.T) {
	m := New()
	m.Create(testConfig())
	m.Create(testConfig())
	assert.Len(t, m.List(), 2)
}

func TestDestroyRemovesAndStops(t *testing.T) {
	m := New()
	c := m.Create(testConfig())
	require.NoError(t, c.Start())

	require.NoError(t, m.Destroy(c.ID()))
	assert.Equal(t, types.ContainerStopped, c.State())

	_, err := m.Get(c.ID())
	assert.True(t, simerr.Is(err, simerr.UnknownContainer))
}

func TestDestroyUnknownIsNoop(t *testing.T) {
	m := New()
	assert.NoError(t, m.Destroy("ghost"))
}

func TestContainerStateCounts(t *testing.T) {
	m := New()
	running := m.Create(testConfig())
	require.NoError(t, running.Start())
	m.Create(testConfig()) // stays CREATED

	counts := m.ContainerStateCounts()
	assert.Equal(t, 1, counts[string(types.ContainerRunning)])
	assert.Equal(t, 1, counts[string(types.ContainerCreated)])
}

func TestMatchCountSumsAcrossContainers(t *testing.T) {
	m := New()
	a := m.Create(testConfig())
	b := m.Create(testConfig())

	a.Matches().Create()
	a.Matches().Create()
	b.Matches().Create()

	assert.Equal(t, 3, m.MatchCount())
}

package registry

import (
	"testing"

	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/store"
	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommandSink struct {
	registered map[string]types.CommandDescriptor
}

func newFakeCommandSink() *fakeCommandSink {
	return &fakeCommandSink{registered: make(map[string]types.CommandDescriptor)}
}

func (f *fakeCommandSink) Register(d types.CommandDescriptor) { f.registered[d.Name] = d }
func (f *fakeCommandSink) Unregister(name string)              { delete(f.registered, name) }

func noopSystem(name string, requires ...string) types.SystemDescriptor {
	return types.SystemDescriptor{
		Name:     name,
		Requires: requires,
		Run:      func(s types.Store, tick uint64) error { return nil },
	}
}

func TestInstallOrdersSystemsByDependency(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	cmds := newFakeCommandSink()
	r := New(st, cmds)

	err := r.Install(types.ModuleDescriptor{
		Name: "physics",
		Systems: []types.SystemDescriptor{
			noopSystem("integrate", "resolveCollisions"),
			noopSystem("resolveCollisions", "broadphase"),
			noopSystem("broadphase"),
		},
	})
	require.NoError(t, err)

	order := r.Systems()
	require.Len(t, order, 3)
	pos := make(map[string]int, 3)
	for i, s := range order {
		pos[s.Name] = i
	}
	assert.Less(t, pos["broadphase"], pos["resolveCollisions"])
	assert.Less(t, pos["resolveCollisions"], pos["integrate"])
}

func TestInstallDetectsCycle(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	r := New(st, newFakeCommandSink())

	err := r.Install(types.ModuleDescriptor{
		Name: "broken",
		Systems: []types.SystemDescriptor{
			noopSystem("a", "b"),
			noopSystem("b", "a"),
		},
	})
	require.Error(t, err)
	assert.True(t, simerr.Is(err, simerr.RegistryError))
	assert.Empty(t, r.Systems(), "a failed install must not leave a partial order installed")
}

func TestInstallRejectsUnknownDependency(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	r := New(st, newFakeCommandSink())

	err := r.Install(types.ModuleDescriptor{
		Name:    "lonely",
		Systems: []types.SystemDescriptor{noopSystem("a", "ghost")},
	})
	require.Error(t, err)
	assert.True(t, simerr.Is(err, simerr.RegistryError))
}

func TestReloadRegistersComponentsAndCommands(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	cmds := newFakeCommandSink()
	r := New(st, cmds)

	err := r.Reload([]types.ModuleDescriptor{{
		Name: "spawn",
		Components: []types.ComponentDeclaration{
			{Name: "ENTITY_TYPE", Permission: types.PermissionRead},
		},
		Commands: []types.CommandDescriptor{
			{Name: "spawnEntity"},
		},
	}})
	require.NoError(t, err)

	_, ok := st.ComponentID("ENTITY_TYPE")
	assert.True(t, ok)
	_, ok = cmds.registered["spawnEntity"]
	assert.True(t, ok)
	assert.Equal(t, []string{"spawn"}, r.Modules())
}

func TestReloadDropsComponentsAndCommandsNoLongerDeclared(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	cmds := newFakeCommandSink()
	r := New(st, cmds)

	require.NoError(t, r.Reload([]types.ModuleDescriptor{{
		Name:       "spawn",
		Components: []types.ComponentDeclaration{{Name: "ENTITY_TYPE", Permission: types.PermissionRead}},
		Commands:   []types.CommandDescriptor{{Name: "spawnEntity"}},
	}}))

	id, _ := st.ComponentID("ENTITY_TYPE")
	e := st.SpawnEntity(1)
	require.NoError(t, st.Set("spawn", e, id, 3))

	require.NoError(t, r.Reload(nil))

	_, present := cmds.registered["spawnEntity"]
	assert.False(t, present, "dropped module's command must be unregistered")
	assert.Empty(t, r.Modules())

	_, ok := st.Get(e, id)
	assert.False(t, ok, "dropped component's cells must be cleared for all entities")
}

func TestReloadRejectsDuplicateComponentAcrossModules(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	r := New(st, newFakeCommandSink())

	err := r.Reload([]types.ModuleDescriptor{
		{Name: "a", Components: []types.ComponentDeclaration{{Name: "POSITION_X"}}},
		{Name: "b", Components: []types.ComponentDeclaration{{Name: "POSITION_X"}}},
	})
	require.Error(t, err)
	assert.True(t, simerr.Is(err, simerr.RegistryError))
}

func TestFailedReloadLeavesPreviousRegistryIntact(t *testing.T) {
	st := store.New("c1", store.Config{QueryCacheCapacity: 16})
	cmds := newFakeCommandSink()
	r := New(st, cmds)

	require.NoError(t, r.Install(types.ModuleDescriptor{
		Name:    "good",
		Systems: []types.SystemDescriptor{noopSystem("a")},
	}))

	err := r.Reload([]types.ModuleDescriptor{{
		Name:    "bad",
		Systems: []types.SystemDescriptor{noopSystem("x", "y"), noopSystem("y", "x")},
	}})
	require.Error(t, err)

	assert.Equal(t, []string{"good"}, r.Modules(), "a rejected reload must not replace the active module set")
	require.Len(t, r.Systems(), 1)
	assert.Equal(t, "a", r.Systems()[0].Name)
}

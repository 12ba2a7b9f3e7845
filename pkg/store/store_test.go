package store

import (
	"testing"

	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New("c1", Config{QueryCacheCapacity: 64})
}

func TestSpawnTagsMatchAndIsQueryable(t *testing.T) {
	s := newTestStore()
	hp := s.RegisterComponent("combat", "HP", types.PermissionWrite)

	e := s.SpawnEntity(1)
	require.NoError(t, s.Set("combat", e, hp, 100))

	v, ok := s.Get(e, hp)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	assert.ElementsMatch(t, []types.EntityId{e}, s.EntitiesInMatch(1))
}

func TestPermissionDeniedOnReadOnlyComponent(t *testing.T) {
	s := newTestStore()
	hp := s.RegisterComponent("combat", "HP", types.PermissionRead)
	e := s.SpawnEntity(1)

	require.NoError(t, s.Set("combat", e, hp, 100))

	err := s.Set("other-module", e, hp, 50)
	assert.True(t, simerr.Is(err, simerr.PermissionDenied))

	v, ok := s.Get(e, hp)
	require.True(t, ok)
	assert.Equal(t, 100.0, v, "value must be unchanged after a denied write")
}

func TestOwningModuleCanWriteReadOnlyComponent(t *testing.T) {
	s := newTestStore()
	hp := s.RegisterComponent("combat", "HP", types.PermissionRead)
	e := s.SpawnEntity(1)

	require.NoError(t, s.Set("combat", e, hp, 100))
	require.NoError(t, s.Set("combat", e, hp, 90))

	v, _ := s.Get(e, hp)
	assert.Equal(t, 90.0, v)
}

func TestWritePermissionAllowsAnyModule(t *testing.T) {
	s := newTestStore()
	pos := s.RegisterComponent("physics", "POSITION_X", types.PermissionWrite)
	e := s.SpawnEntity(1)

	require.NoError(t, s.Set("any-module", e, pos, 5))
	v, _ := s.Get(e, pos)
	assert.Equal(t, 5.0, v)
}

func TestDestroyEntityCascadesDirty(t *testing.T) {
	s := newTestStore()
	e := s.SpawnEntity(1)
	require.NoError(t, s.DestroyEntity(e))

	snap := s.TakeDirty(1)
	assert.Empty(t, snap.Added, "created and destroyed before any Take should reconcile away")
	assert.Empty(t, snap.Removed)
}

func TestDeleteMatchDestroysAllMembers(t *testing.T) {
	s := newTestStore()
	var ids []types.EntityId
	for i := 0; i < 5; i++ {
		ids = append(ids, s.SpawnEntity(1))
	}

	s.DeleteMatch(1)

	for _, e := range ids {
		err := s.DestroyEntity(e)
		assert.True(t, simerr.Is(err, simerr.UnknownEntity))
	}
}

func TestUnsetComponentForAllClearsEveryEntity(t *testing.T) {
	s := newTestStore()
	hp := s.RegisterComponent("combat", "HP", types.PermissionWrite)
	e1 := s.SpawnEntity(1)
	e2 := s.SpawnEntity(1)
	require.NoError(t, s.Set("combat", e1, hp, 1))
	require.NoError(t, s.Set("combat", e2, hp, 2))

	s.UnsetComponentForAll(hp)

	_, ok := s.Get(e1, hp)
	assert.False(t, ok)
	_, ok = s.Get(e2, hp)
	assert.False(t, ok)

	// After unregistration the component id is unknown to the facade.
	err := s.Set("combat", e1, hp, 3)
	assert.True(t, simerr.Is(err, simerr.UnknownComponent))
}

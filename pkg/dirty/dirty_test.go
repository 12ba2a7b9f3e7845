package dirty

import (
	"testing"

	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
)

const match types.MatchId = 1

func TestBasicAddedRemovedChanged(t *testing.T) {
	tr := New()
	tr.MarkCreated(match, 44)
	tr.MarkCreated(match, 45)
	tr.MarkDestroyed(match, 41)
	tr.MarkChanged(match, 42, 7)
	tr.MarkChanged(match, 43, 7)

	snap := tr.Take(match)
	assert.ElementsMatch(t, []types.EntityId{44, 45}, snap.Added)
	assert.ElementsMatch(t, []types.EntityId{41}, snap.Removed)
	assert.Len(t, snap.ChangedCells, 2)
}

func TestTransientEntityReconciliation(t *testing.T) {
	tr := New()
	tr.MarkCreated(match, 99)
	tr.MarkChanged(match, 99, 1)
	tr.MarkDestroyed(match, 99)

	snap := tr.Take(match)
	assert.Empty(t, snap.Added)
	assert.Empty(t, snap.Removed)
	assert.Empty(t, snap.ChangedCells)
}

func TestTakeResetsWindow(t *testing.T) {
	tr := New()
	tr.MarkCreated(match, 1)
	_ = tr.Take(match)

	second := tr.Take(match)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Removed)
	assert.Empty(t, second.ChangedCells)
}

func TestConcurrentAccumulationAfterTake(t *testing.T) {
	tr := New()
	tr.MarkCreated(match, 1)
	first := tr.Take(match)
	assert.Len(t, first.Added, 1)

	tr.MarkCreated(match, 2)
	second := tr.Take(match)
	assert.ElementsMatch(t, []types.EntityId{2}, second.Added)
}

func TestDropMatchDiscardsState(t *testing.T) {
	tr := New()
	tr.MarkCreated(match, 1)
	tr.DropMatch(match)

	snap := tr.Take(match)
	assert.Empty(t, snap.Added)
}

func TestRemovedEntityNotCreatedThisWindowStaysRemoved(t *testing.T) {
	tr := New()
	// Entity 41 was created in a prior window (not tracked here), only
	// destroyed in this one.
	tr.MarkDestroyed(match, 41)

	snap := tr.Take(match)
	assert.Equal(t, []types.EntityId{41}, snap.Removed)
}

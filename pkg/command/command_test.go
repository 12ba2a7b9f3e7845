package command

import (
	"errors"
	"testing"

	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnDescriptor(handle types.CommandHandlerFunc) types.CommandDescriptor {
	return types.CommandDescriptor{
		Name:   "spawn",
		Module: "test",
		Schema: types.CommandSchema{
			{Name: "entityType", Type: types.ParamTypeInt, Required: true},
			{Name: "playerId", Type: types.ParamTypeInt, Required: false, Default: 0},
		},
		Handle: handle,
	}
}

func TestEnqueueRejectsUnknownCommand(t *testing.T) {
	q := New("c1", 8)
	err := q.Enqueue(Command{Name: "nope"})
	assert.True(t, simerr.Is(err, simerr.BadCommand))
	assert.Equal(t, 0, q.Depth())
}

func TestEnqueueRejectsMissingRequiredParam(t *testing.T) {
	q := New("c1", 8)
	q.Register(spawnDescriptor(nil))

	err := q.Enqueue(Command{Name: "spawn", Params: map[string]any{}})
	assert.True(t, simerr.Is(err, simerr.BadCommand))
	assert.Equal(t, 0, q.Depth(), "invalid command must not be queued")
}

func TestEnqueueAcceptsValidCommand(t *testing.T) {
	q := New("c1", 8)
	q.Register(spawnDescriptor(nil))

	err := q.Enqueue(Command{Name: "spawn", Params: map[string]any{"entityType": 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Depth())
}

func TestDrainPreservesFIFOOrder(t *testing.T) {
	q := New("c1", 8)
	var order []int
	q.Register(types.CommandDescriptor{
		Name: "mark",
		Handle: func(store types.Store, tick uint64, params map[string]any) error {
			order = append(order, params["n"].(int))
			return nil
		},
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Command{Name: "mark", Params: map[string]any{"n": i}}))
	}

	q.Drain(nil, 1)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, q.Depth())
}

func TestDrainOnlyAppliesCommandsEnqueuedBeforeIt(t *testing.T) {
	q := New("c1", 8)
	var seen []int
	q.Register(types.CommandDescriptor{
		Name: "mark",
		Handle: func(store types.Store, tick uint64, params map[string]any) error {
			seen = append(seen, params["n"].(int))
			if params["n"].(int) == 0 {
				// A handler enqueueing during drain must land in the next
				// tick's batch, not this one.
				_ = q.Enqueue(Command{Name: "mark", Params: map[string]any{"n": 99}})
			}
			return nil
		},
	})

	require.NoError(t, q.Enqueue(Command{Name: "mark", Params: map[string]any{"n": 0}}))
	q.Drain(nil, 1)

	assert.Equal(t, []int{0}, seen)
	assert.Equal(t, 1, q.Depth(), "command enqueued mid-drain belongs to the next tick")
}

func TestHandlerErrorsDoNotStopDrain(t *testing.T) {
	q := New("c1", 8)
	var ran []string
	q.Register(types.CommandDescriptor{
		Name: "fails",
		Handle: func(store types.Store, tick uint64, params map[string]any) error {
			ran = append(ran, "fails")
			return errors.New("boom")
		},
	})
	q.Register(types.CommandDescriptor{
		Name: "ok",
		Handle: func(store types.Store, tick uint64, params map[string]any) error {
			ran = append(ran, "ok")
			return nil
		},
	})

	require.NoError(t, q.Enqueue(Command{Name: "fails"}))
	require.NoError(t, q.Enqueue(Command{Name: "ok"}))
	q.Drain(nil, 1)

	assert.Equal(t, []string{"fails", "ok"}, ran)
	recent := q.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "fails", recent[0].Command)
}

func TestErrorLogRingBufferBounded(t *testing.T) {
	q := New("c1", 2)
	q.Register(types.CommandDescriptor{
		Name: "fails",
		Handle: func(store types.Store, tick uint64, params map[string]any) error {
			return errors.New("boom")
		},
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Command{Name: "fails"}))
		q.Drain(nil, uint64(i))
	}

	recent := q.Recent(10)
	assert.Len(t, recent, 2, "ring buffer must stay bounded at capacity")
	assert.Equal(t, uint64(3), recent[0].Tick)
	assert.Equal(t, uint64(4), recent[1].Tick)
}

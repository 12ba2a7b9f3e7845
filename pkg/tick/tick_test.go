package tick

import (
	"errors"
	"testing"
	"time"

	"github.com/matchforge/simcore/pkg/events"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDrainer struct {
	drained []uint64
}

func (f *fakeDrainer) Drain(store types.Store, tick uint64) {
	f.drained = append(f.drained, tick)
}

type fakeSystems struct {
	systems []types.SystemDescriptor
}

func (f *fakeSystems) Systems() []types.SystemDescriptor { return f.systems }

func sys(name string, run types.SystemRunFunc) types.SystemDescriptor {
	return types.SystemDescriptor{Name: name, Run: run}
}

func TestAdvanceRunsSystemsInOrderAndIncrementsTick(t *testing.T) {
	var ran []string
	systems := &fakeSystems{systems: []types.SystemDescriptor{
		sys("a", func(s types.Store, tick uint64) error { ran = append(ran, "a"); return nil }),
		sys("b", func(s types.Store, tick uint64) error { ran = append(ran, "b"); return nil }),
	}}
	drainer := &fakeDrainer{}
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()

	c := New("c1", nil, drainer, systems, broker)
	require.NoError(t, c.Advance())

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, []uint64{0}, drainer.drained)
	assert.Equal(t, uint64(1), c.CurrentTick())
}

func TestAdvanceAbortsOnSystemError(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	systems := &fakeSystems{systems: []types.SystemDescriptor{
		sys("a", func(s types.Store, tick uint64) error { ran = append(ran, "a"); return boom }),
		sys("b", func(s types.Store, tick uint64) error { ran = append(ran, "b"); return nil }),
	}}
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()

	c := New("c1", nil, &fakeDrainer{}, systems, broker)
	err := c.Advance()

	require.Error(t, err)
	assert.True(t, simerr.Is(err, simerr.RegistryError))
	assert.Equal(t, []string{"a"}, ran, "a system failure must stop later systems from running")
	assert.Equal(t, uint64(0), c.CurrentTick(), "tick counter must not advance on a failed tick")
}

func TestAdvanceRejectsConcurrentCall(t *testing.T) {
	block := make(chan struct{})
	systems := &fakeSystems{systems: []types.SystemDescriptor{
		sys("slow", func(s types.Store, tick uint64) error { <-block; return nil }),
	}}
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()

	c := New("c1", nil, &fakeDrainer{}, systems, broker)

	done := make(chan error, 1)
	go func() { done <- c.Advance() }()
	time.Sleep(20 * time.Millisecond)

	err := c.Advance()
	assert.True(t, simerr.Is(err, simerr.InvalidState), "a tick already in flight must reject a second Advance")

	close(block)
	require.NoError(t, <-done)
}

func TestAutoAdvanceSkipsWhenBusy(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	systems := &fakeSystems{systems: []types.SystemDescriptor{
		sys("slow", func(s types.Store, tick uint64) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-block
			return nil
		}),
	}}
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()

	c := New("c1", nil, &fakeDrainer{}, systems, broker)
	c.AutoAdvance(10 * time.Millisecond)
	defer c.StopAutoAdvance()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("auto-advance never started a tick")
	}

	// While the first tick is blocked, further ticks must be skipped, not
	// queued: CurrentTick stays at 0 until the blocked tick is released.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, uint64(0), c.CurrentTick())

	close(block)
}

func TestAdvanceInvokesOnFatalErrorCallback(t *testing.T) {
	boom := errors.New("boom")
	systems := &fakeSystems{systems: []types.SystemDescriptor{
		sys("a", func(s types.Store, tick uint64) error { return boom }),
	}}
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()

	c := New("c1", nil, &fakeDrainer{}, systems, broker)

	var got error
	c.OnFatalError(func(err error) { got = err })

	err := c.Advance()
	require.Error(t, err)
	assert.Equal(t, err, got, "OnFatalError must receive the same error Advance returns")
}

func TestAutoAdvanceStopsItselfOnSystemError(t *testing.T) {
	boom := errors.New("boom")
	systems := &fakeSystems{systems: []types.SystemDescriptor{
		sys("a", func(s types.Store, tick uint64) error { return boom }),
	}}
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()

	c := New("c1", nil, &fakeDrainer{}, systems, broker)

	errored := make(chan struct{})
	c.OnFatalError(func(err error) { close(errored) })

	c.AutoAdvance(10 * time.Millisecond)

	select {
	case <-errored:
	case <-time.After(time.Second):
		t.Fatal("OnFatalError callback never fired")
	}

	// Give the auto-advance goroutine time to observe the error and exit;
	// the tick counter must never move past the failed tick.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(0), c.CurrentTick(), "a fatal system error must stop auto-advance from retrying")
}

func TestLastTickCompletedAtBeforeAnyTick(t *testing.T) {
	broker := events.NewBroker(0)
	broker.Start()
	defer broker.Stop()
	c := New("c1", nil, &fakeDrainer{}, &fakeSystems{}, broker)

	tick, at := c.LastTickCompletedAt()
	assert.Equal(t, uint64(0), tick)
	assert.False(t, at.IsZero())
}

// Package tick drives a container's simulation clock: manual single-step
// advance and an optional auto-advance loop, both funneling through the
// same tick cycle (drain commands, run systems in dependency order,
// increment the tick counter, fan out tick-complete off the hot path).
package tick

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/matchforge/simcore/pkg/events"
	"github.com/matchforge/simcore/pkg/log"
	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// CommandDrainer drains the container's pending commands against store at
// the start of a tick. Satisfied by *command.Queue.
type CommandDrainer interface {
	Drain(store types.Store, tick uint64)
}

// SystemSource exposes the dependency-resolved system execution order.
// Satisfied by *registry.Registry.
type SystemSource interface {
	Systems() []types.SystemDescriptor
}

// Controller drives one container's tick clock. At most one tick runs at a
// time: an Advance that finds another tick in flight is rejected with
// InvalidState, and AutoAdvance skips a cycle via the same busy flag.
type Controller struct {
	containerID string
	store       types.Store
	commands    CommandDrainer
	systems     SystemSource
	broker      *events.Broker

	busy     atomic.Bool
	tick     atomic.Uint64
	lastAt   atomic.Value // time.Time

	autoMu   sync.Mutex
	stopCh   chan struct{}
	running  bool

	onError func(error)
}

// New creates a Controller for one container.
func New(containerID string, store types.Store, commands CommandDrainer, systems SystemSource, broker *events.Broker) *Controller {
	c := &Controller{
		containerID: containerID,
		store:       store,
		commands:    commands,
		systems:     systems,
		broker:      broker,
	}
	c.lastAt.Store(time.Now())
	return c
}

// OnFatalError registers fn to run whenever a system error aborts a tick.
// Must be called before Start/AutoAdvance; the controller does not
// synchronize against concurrent registration.
func (c *Controller) OnFatalError(fn func(error)) {
	c.onError = fn
}

// Advance runs exactly one tick cycle synchronously. If a system returns
// an error, the tick is considered failed: later systems in the order do
// not run, and the error is returned to the caller, which per container
// lifecycle semantics should move the container into an error state.
func (c *Controller) Advance() error {
	if !c.busy.CompareAndSwap(false, true) {
		return simerr.New(simerr.InvalidState, "tick.Advance", nil)
	}
	defer c.busy.Store(false)

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.TickDuration, c.containerID)

	tick := c.tick.Load()
	c.commands.Drain(c.store, tick)

	for _, sys := range c.systems.Systems() {
		if err := sys.Run(c.store, tick); err != nil {
			metrics.SystemFailuresTotal.WithLabelValues(c.containerID, sys.Name).Inc()
			log.WithComponent("tick").Error().
				Str("system", sys.Name).
				Uint64("tick", tick).
				Err(err).
				Msg("system error aborted tick")
			tickErr := simerr.New(simerr.RegistryError, "tick.Advance", err)
			if c.onError != nil {
				c.onError(tickErr)
			}
			return tickErr
		}
	}

	next := c.tick.Add(1)
	now := time.Now()
	c.lastAt.Store(now)
	metrics.TicksTotal.WithLabelValues(c.containerID).Inc()

	c.broker.Publish(&events.TickEvent{
		Type:        events.EventTickComplete,
		ContainerID: c.containerID,
		Tick:        next - 1,
		Timestamp:   now,
	})
	return nil
}

// AutoAdvance starts a background loop calling Advance every interval. A
// cycle that finds the previous one still running is skipped, never
// queued, and counted in TicksSkipped.
func (c *Controller) AutoAdvance(interval time.Duration) {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if c.busy.Load() {
					metrics.TicksSkipped.WithLabelValues(c.containerID).Inc()
					continue
				}
				if err := c.Advance(); err != nil {
					log.WithComponent("tick").Error().Err(err).
						Msg("auto-advance tick failed, container moving to error-held state, stopping auto-advance")
					return
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// StopAutoAdvance stops the auto-advance loop started by AutoAdvance, if
// any is running.
func (c *Controller) StopAutoAdvance() {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	if !c.running {
		return
	}
	close(c.stopCh)
	c.running = false
}

// CurrentTick returns the next tick number to be executed.
func (c *Controller) CurrentTick() uint64 {
	return c.tick.Load()
}

// LastTickCompletedAt implements health.TickSource.
func (c *Controller) LastTickCompletedAt() (uint64, time.Time) {
	tick := c.tick.Load()
	if tick == 0 {
		return 0, c.lastAt.Load().(time.Time)
	}
	return tick - 1, c.lastAt.Load().(time.Time)
}

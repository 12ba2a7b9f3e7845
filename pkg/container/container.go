// Package container implements the per-container isolation boundary: one
// Container hosts any number of matches and owns one store, module
// registry, command queue, tick controller, and event broker, exposing
// them through a fluent, state-gated API.
package container

import (
	"fmt"
	"sync"
	"time"

	"github.com/matchforge/simcore/pkg/command"
	"github.com/matchforge/simcore/pkg/config"
	"github.com/matchforge/simcore/pkg/events"
	"github.com/matchforge/simcore/pkg/log"
	"github.com/matchforge/simcore/pkg/registry"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/snapshot"
	"github.com/matchforge/simcore/pkg/snapshotsink"
	"github.com/matchforge/simcore/pkg/store"
	"github.com/matchforge/simcore/pkg/tick"
	"github.com/matchforge/simcore/pkg/types"
)

// Config configures a Container's bounded resources. It is an alias of
// config.ContainerConfig so callers can depend on either package.
type Config = config.ContainerConfig

// DefaultConfig returns sane defaults for a newly created container.
func DefaultConfig() Config {
	return config.DefaultContainerConfig()
}

// Option customizes a Container at construction time.
type Option func(*Container)

// WithSnapshotSink attaches a durable snapshot sink. When cfg.SnapshotOnTick
// is not config.SnapshotNone, the container persists every live match's
// snapshot to sink after each completed tick.
func WithSnapshotSink(sink *snapshotsink.Sink) Option {
	return func(c *Container) { c.sink = sink }
}

// Container is one isolated simulation instance: its own component store,
// module registry, command queue, tick clock, and event broker, gated by
// a CREATED→STARTING→RUNNING⇄PAUSED→STOPPING→STOPPED lifecycle.
type Container struct {
	id  types.ContainerId
	cfg Config

	mu    sync.Mutex
	state types.ContainerState

	store    *store.Store
	registry *registry.Registry
	commands *command.Queue
	ticker   *tick.Controller
	broker   *events.Broker
	snaps    *snapshot.Snapshotter

	nextMatch        uint64
	liveMatches      map[types.MatchId]struct{}
	lastSnapshotTick map[types.MatchId]uint64

	sink        *snapshotsink.Sink
	snapshotSub events.Subscriber
}

// New creates a Container in the CREATED state. It does not start ticking
// until Start is called.
func New(id types.ContainerId, cfg Config, opts ...Option) *Container {
	st := store.New(string(id), store.Config{QueryCacheCapacity: cfg.QueryCacheCapacity})
	cmds := command.New(string(id), cfg.CommandErrorLogSize)
	reg := registry.New(st, cmds)
	broker := events.NewBroker(cfg.TickListenerPoolSize)

	c := &Container{
		id:               id,
		cfg:              cfg,
		state:            types.ContainerCreated,
		store:            st,
		registry:         reg,
		commands:         cmds,
		broker:           broker,
		snaps:            snapshot.New(string(id), st),
		liveMatches:      make(map[types.MatchId]struct{}),
		lastSnapshotTick: make(map[types.MatchId]uint64),
	}
	c.ticker = tick.New(string(id), st, cmds, reg, broker)
	c.ticker.OnFatalError(c.handleFatalTickError)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// handleFatalTickError implements the fatal-system-error contract: a system
// error aborts the tick and moves the container into ERRORED, which accepts
// only Stop(). It is called synchronously from within tick.Controller.Advance,
// on both the manual and auto-advance paths.
func (c *Container) handleFatalTickError(err error) {
	c.mu.Lock()
	c.state = types.ContainerErrored
	c.mu.Unlock()

	c.ticker.StopAutoAdvance()
	log.WithContainerID(string(c.id)).Error().Err(err).
		Msg("container moved to ERRORED, accepting only Stop()")
}

// ID returns the container's id.
func (c *Container) ID() types.ContainerId { return c.id }

// State returns the container's current lifecycle state.
func (c *Container) State() types.ContainerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Container) transition(op string, allowed map[types.ContainerState]bool, next types.ContainerState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !allowed[c.state] {
		return simerr.NewInvalidState(op, c.state, next)
	}
	c.state = next
	return nil
}

// Start moves the container from CREATED to RUNNING and begins the
// auto-advance tick loop.
func (c *Container) Start() error {
	if err := c.transition("container.Start",
		map[types.ContainerState]bool{types.ContainerCreated: true}, types.ContainerStarting); err != nil {
		return err
	}

	c.broker.Start()

	if c.sink != nil && c.cfg.SnapshotOnTick != config.SnapshotNone {
		c.snapshotSub = c.broker.Subscribe()
		go c.persistOnTick(c.snapshotSub)
	}

	c.mu.Lock()
	c.state = types.ContainerRunning
	c.mu.Unlock()

	if c.cfg.TickIntervalMS > 0 {
		c.ticker.AutoAdvance(time.Duration(c.cfg.TickIntervalMS) * time.Millisecond)
	}
	log.WithContainerID(string(c.id)).Info().Msg("container running")
	return nil
}

// persistOnTick runs as a tick listener, off the tick's hot path: for every
// event it writes the configured snapshot kind for every live match to the
// attached sink.
func (c *Container) persistOnTick(sub events.Subscriber) {
	for ev := range sub {
		c.mu.Lock()
		matches := make([]types.MatchId, 0, len(c.liveMatches))
		for m := range c.liveMatches {
			matches = append(matches, m)
		}
		c.mu.Unlock()

		for _, m := range matches {
			switch c.cfg.SnapshotOnTick {
			case config.SnapshotFull:
				c.sink.PersistFull(string(c.id), c.snaps.Full(m, ev.Tick))
			case config.SnapshotDelta:
				c.mu.Lock()
				from := c.lastSnapshotTick[m]
				c.lastSnapshotTick[m] = ev.Tick
				c.mu.Unlock()
				c.sink.PersistDelta(string(c.id), c.snaps.Delta(m, from, ev.Tick))
			}
		}
	}
}

// Pause moves a RUNNING container to PAUSED, stopping auto-advance. Manual
// Ticks().Advance() calls are still rejected while paused.
func (c *Container) Pause() error {
	if err := c.transition("container.Pause",
		map[types.ContainerState]bool{types.ContainerRunning: true}, types.ContainerPaused); err != nil {
		return err
	}
	c.ticker.StopAutoAdvance()
	return nil
}

// Resume moves a PAUSED container back to RUNNING, restarting auto-advance
// when a tick interval is configured.
func (c *Container) Resume() error {
	if err := c.transition("container.Resume",
		map[types.ContainerState]bool{types.ContainerPaused: true}, types.ContainerRunning); err != nil {
		return err
	}
	if c.cfg.TickIntervalMS > 0 {
		c.ticker.AutoAdvance(time.Duration(c.cfg.TickIntervalMS) * time.Millisecond)
	}
	return nil
}

// Stop moves the container to STOPPING then STOPPED, halting the tick
// loop and event broker. Stop is idempotent from STOPPED, and is the only
// operation an ERRORED container accepts.
func (c *Container) Stop() error {
	c.mu.Lock()
	if c.state == types.ContainerStopped {
		c.mu.Unlock()
		return nil
	}
	if c.state != types.ContainerRunning && c.state != types.ContainerPaused && c.state != types.ContainerErrored {
		s := c.state
		c.mu.Unlock()
		return simerr.NewInvalidState("container.Stop", s, types.ContainerStopping)
	}
	c.state = types.ContainerStopping
	c.mu.Unlock()

	c.ticker.StopAutoAdvance()
	if c.snapshotSub != nil {
		c.broker.Unsubscribe(c.snapshotSub)
		c.snapshotSub = nil
	}
	c.broker.Stop()

	c.mu.Lock()
	c.state = types.ContainerStopped
	c.mu.Unlock()
	log.WithContainerID(string(c.id)).Info().Msg("container stopped")
	return nil
}

// Matches returns the fluent match-management sub-API.
func (c *Container) Matches() *MatchAPI { return &MatchAPI{c: c} }

// Ticks returns the fluent tick-control sub-API.
func (c *Container) Ticks() *TickAPI { return &TickAPI{c: c} }

// Commands returns the fluent command sub-API.
func (c *Container) Commands() *CommandAPI { return &CommandAPI{c: c} }

// Snapshots returns the fluent snapshot sub-API.
func (c *Container) Snapshots() *SnapshotAPI { return &SnapshotAPI{c: c} }

// Modules returns the fluent module registry sub-API.
func (c *Container) Modules() *ModuleAPI { return &ModuleAPI{c: c} }

func (c *Container) requireRunning(op string) error {
	s := c.State()
	if s != types.ContainerRunning {
		return simerr.NewInvalidState(op, s, types.ContainerRunning)
	}
	return nil
}

// MatchAPI groups match lifecycle operations.
type MatchAPI struct{ c *Container }

// Create allocates a new match id within the container and returns it.
// Match ids are scoped to the container, not globally unique.
func (m *MatchAPI) Create() types.MatchId {
	m.c.mu.Lock()
	m.c.nextMatch++
	id := m.c.nextMatch
	m.c.liveMatches[types.MatchId(id)] = struct{}{}
	m.c.mu.Unlock()
	log.WithMatchID(fmt.Sprintf("%d", id)).Info().Str("container_id", string(m.c.id)).Msg("match created")
	return types.MatchId(id)
}

// Destroy tears down every entity belonging to match.
func (m *MatchAPI) Destroy(match types.MatchId) {
	m.c.store.DeleteMatch(match)
	m.c.mu.Lock()
	delete(m.c.liveMatches, match)
	delete(m.c.lastSnapshotTick, match)
	m.c.mu.Unlock()
	log.WithMatchID(fmt.Sprintf("%d", match)).Info().Str("container_id", string(m.c.id)).Msg("match destroyed")
}

// Count returns the number of matches currently live in this container.
func (m *MatchAPI) Count() int {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return len(m.c.liveMatches)
}

// SpawnEntity creates an entity in match.
func (m *MatchAPI) SpawnEntity(match types.MatchId) types.EntityId {
	return m.c.store.SpawnEntity(match)
}

// TickAPI groups tick-control operations.
type TickAPI struct{ c *Container }

// Advance runs exactly one tick cycle, regardless of whether auto-advance
// is active. Requires the container to be RUNNING.
func (t *TickAPI) Advance() error {
	if err := t.c.requireRunning("container.Ticks.Advance"); err != nil {
		return err
	}
	return t.c.ticker.Advance()
}

// Current returns the next tick number to execute.
func (t *TickAPI) Current() uint64 { return t.c.ticker.CurrentTick() }

// CommandAPI groups command submission.
type CommandAPI struct{ c *Container }

// Enqueue submits a command for the next drain.
func (cm *CommandAPI) Enqueue(cmd command.Command) error {
	return cm.c.commands.Enqueue(cmd)
}

// Errors returns the last n command handler errors, oldest first.
func (cm *CommandAPI) Errors(n int) []command.HandlerError {
	return cm.c.commands.Recent(n)
}

// SnapshotAPI groups full/delta snapshot retrieval.
type SnapshotAPI struct{ c *Container }

// Full returns a full snapshot of match at the container's current tick.
func (s *SnapshotAPI) Full(match types.MatchId) snapshot.Full {
	return s.c.snaps.Full(match, s.c.ticker.CurrentTick())
}

// Delta returns the accumulated delta for match since fromTick.
func (s *SnapshotAPI) Delta(match types.MatchId, fromTick uint64) snapshot.Delta {
	return s.c.snaps.Delta(match, fromTick, s.c.ticker.CurrentTick())
}

// ModuleAPI groups module install/reload.
type ModuleAPI struct{ c *Container }

// Install adds or replaces one module.
func (m *ModuleAPI) Install(d types.ModuleDescriptor) error {
	return m.c.registry.Install(d)
}

// Reload atomically replaces the entire module set.
func (m *ModuleAPI) Reload(ds []types.ModuleDescriptor) error {
	return m.c.registry.Reload(ds)
}

// Installed returns the names of currently installed modules.
func (m *ModuleAPI) Installed() []string {
	return m.c.registry.Modules()
}

// LastTickCompletedAt implements health.TickSource.
func (c *Container) LastTickCompletedAt() (uint64, time.Time) {
	return c.ticker.LastTickCompletedAt()
}

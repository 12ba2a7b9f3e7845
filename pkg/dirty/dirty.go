// Package dirty accumulates, per match, the entities and cells changed
// since the last delta was taken, applying the reconciliation rule that an
// entity created and destroyed within the same window leaves no trace.
package dirty

import (
	"sync"

	"github.com/matchforge/simcore/pkg/types"
)

type cell struct {
	Entity    types.EntityId
	Component types.ComponentId
}

type window struct {
	added        map[types.EntityId]struct{}
	removed      map[types.EntityId]struct{}
	changedCells map[cell]struct{}
}

func newWindow() *window {
	return &window{
		added:        make(map[types.EntityId]struct{}),
		removed:      make(map[types.EntityId]struct{}),
		changedCells: make(map[cell]struct{}),
	}
}

// Snapshot is the accumulated change set for one match's window, returned
// by Take.
type Snapshot struct {
	Added        []types.EntityId
	Removed      []types.EntityId
	ChangedCells []struct {
		Entity    types.EntityId
		Component types.ComponentId
	}
}

// Tracker records per-match dirty state across a container's matches.
type Tracker struct {
	mu      sync.Mutex
	windows map[types.MatchId]*window
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{windows: make(map[types.MatchId]*window)}
}

func (t *Tracker) windowFor(m types.MatchId) *window {
	w, ok := t.windows[m]
	if !ok {
		w = newWindow()
		t.windows[m] = w
	}
	return w
}

// MarkCreated records that entity e was created in match m's current
// window.
func (t *Tracker) MarkCreated(m types.MatchId, e types.EntityId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windowFor(m).added[e] = struct{}{}
}

// MarkDestroyed records that entity e was destroyed in match m's current
// window, applying the create-then-destroy reconciliation rule: if e was
// also created in this window, it is dropped from both added and removed,
// and any of its changed cells recorded this window are discarded.
func (t *Tracker) MarkDestroyed(m types.MatchId, e types.EntityId) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windowFor(m)
	if _, createdThisWindow := w.added[e]; createdThisWindow {
		delete(w.added, e)
		for c := range w.changedCells {
			if c.Entity == e {
				delete(w.changedCells, c)
			}
		}
		return
	}
	w.removed[e] = struct{}{}
}

// MarkChanged records that (e, c) changed value in match m's current
// window. If e is later destroyed within the same window, MarkDestroyed
// retroactively drops these entries.
func (t *Tracker) MarkChanged(m types.MatchId, e types.EntityId, c types.ComponentId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windowFor(m).changedCells[cell{Entity: e, Component: c}] = struct{}{}
}

// Take returns match m's accumulated change set and atomically resets it,
// so concurrent writers begin accumulating into a fresh, empty window.
func (t *Tracker) Take(m types.MatchId) Snapshot {
	t.mu.Lock()
	w, ok := t.windows[m]
	if ok {
		delete(t.windows, m)
	}
	t.mu.Unlock()

	if !ok {
		return Snapshot{}
	}

	out := Snapshot{
		Added:   make([]types.EntityId, 0, len(w.added)),
		Removed: make([]types.EntityId, 0, len(w.removed)),
	}
	for e := range w.added {
		out.Added = append(out.Added, e)
	}
	for e := range w.removed {
		out.Removed = append(out.Removed, e)
	}
	for c := range w.changedCells {
		out.ChangedCells = append(out.ChangedCells, struct {
			Entity    types.EntityId
			Component types.ComponentId
		}{Entity: c.Entity, Component: c.Component})
	}
	return out
}

// DropMatch discards all accumulated state for m, used on cascading match
// deletion.
func (t *Tracker) DropMatch(m types.MatchId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, m)
}

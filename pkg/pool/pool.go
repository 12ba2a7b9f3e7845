// Package pool implements the columnar component store: a single flat
// float64 array holding every (entity, component) cell for one container,
// with slot reuse on destroy and append-only column growth on component
// registration.
package pool

import (
	"math"
	"sync/atomic"

	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// row is an internal index into the flat cell array; width cells per row.
type row uint32

// Pool is the columnar entity-component store for one container. It is not
// internally synchronized: callers (pkg/store) own the reader-writer
// discipline described for the simulation worker.
type Pool struct {
	width   int
	cells   []float64
	entity  map[types.EntityId]row
	rowEnt  map[row]types.EntityId
	free    []row
	nextRow row

	columnOf map[types.ComponentId]int
	nameOf   map[string]types.ComponentId
	colName  map[types.ComponentId]string
	nextCol  types.ComponentId

	versions []atomic.Uint64

	nextEntity types.EntityId
	count      []uint64 // live count per column, indexed like versions
}

// New creates an empty pool with no registered components.
func New() *Pool {
	return &Pool{
		entity:   make(map[types.EntityId]row),
		rowEnt:   make(map[row]types.EntityId),
		columnOf: make(map[types.ComponentId]int),
		nameOf:   make(map[string]types.ComponentId),
		colName:  make(map[types.ComponentId]string),
	}
}

// RegisterComponent assigns a fresh column to name if it isn't already
// registered, growing every existing row by one cell initialized to the
// absent sentinel. Returns the component's stable id.
func (p *Pool) RegisterComponent(name string) types.ComponentId {
	if id, ok := p.nameOf[name]; ok {
		return id
	}

	id := p.nextCol
	p.nextCol++
	col := p.width
	p.width++

	p.nameOf[name] = id
	p.colName[id] = name
	p.columnOf[id] = col
	p.versions = append(p.versions, atomic.Uint64{})
	p.count = append(p.count, 0)

	// Rows may already exist even when this is the very first registered
	// component (CreateEntity does not require width > 0), so growth is
	// gated on whether any row has been allocated, not on col > 0. The
	// grown buffer is sized by nextRow, not the live-row count, since free
	// rows sit at valid indices too and must stay addressable until reused.
	if p.nextRow > 0 {
		grown := make([]float64, int(p.nextRow)*p.width)
		for i := range grown {
			grown[i] = types.Absent
		}
		for r := row(0); r < p.nextRow; r++ {
			if _, live := p.rowEnt[r]; !live {
				continue
			}
			oldBase := int(r) * col
			newBase := int(r) * p.width
			copy(grown[newBase:newBase+col], p.cells[oldBase:oldBase+col])
		}
		p.cells = grown
	}

	return id
}

// ComponentID looks up a previously registered component by name.
func (p *Pool) ComponentID(name string) (types.ComponentId, bool) {
	id, ok := p.nameOf[name]
	return id, ok
}

// ComponentName returns the registered name for id, if any.
func (p *Pool) ComponentName(id types.ComponentId) (string, bool) {
	name, ok := p.colName[id]
	return name, ok
}

// CreateEntity allocates a row, reusing the oldest free row if one exists,
// and initializes every cell in it to the absent sentinel.
func (p *Pool) CreateEntity() types.EntityId {
	var r row
	if n := len(p.free); n > 0 {
		r = p.free[0]
		p.free = p.free[1:]
	} else {
		r = p.nextRow
		p.nextRow++
		needed := int(p.nextRow) * p.width
		if needed > len(p.cells) {
			grown := make([]float64, needed)
			copy(grown, p.cells)
			for i := len(p.cells); i < needed; i++ {
				grown[i] = types.Absent
			}
			p.cells = grown
		}
	}

	base := int(r) * p.width
	for i := 0; i < p.width; i++ {
		p.cells[base+i] = types.Absent
	}

	p.nextEntity++
	e := p.nextEntity
	p.entity[e] = r
	p.rowEnt[r] = e
	return e
}

// DestroyEntity reclaims e's row for reuse. It does not shrink the backing
// array. Fails with UnknownEntity if e is not live.
func (p *Pool) DestroyEntity(e types.EntityId) error {
	r, ok := p.entity[e]
	if !ok {
		return simerr.New(simerr.UnknownEntity, "pool.DestroyEntity", nil)
	}

	base := int(r) * p.width
	for col := range p.colName {
		idx := p.columnOf[col]
		if !types.IsAbsent(p.cells[base+idx]) {
			p.count[idx]--
		}
	}

	delete(p.entity, e)
	delete(p.rowEnt, r)
	p.free = append(p.free, r)
	return nil
}

// Exists reports whether e currently maps to a live row.
func (p *Pool) Exists(e types.EntityId) bool {
	_, ok := p.entity[e]
	return ok
}

// EntityCount returns the number of live entities.
func (p *Pool) EntityCount() int {
	return len(p.entity)
}

// RowsInUse returns the number of occupied rows, identical to EntityCount
// by construction (one live entity per occupied row).
func (p *Pool) RowsInUse() int {
	return len(p.entity)
}

// RowsTotal returns the number of rows ever allocated, including free ones.
func (p *Pool) RowsTotal() int {
	return int(p.nextRow)
}

func (p *Pool) cellIndex(e types.EntityId, c types.ComponentId) (int, error) {
	r, ok := p.entity[e]
	if !ok {
		return 0, simerr.New(simerr.UnknownEntity, "pool", nil)
	}
	col, ok := p.columnOf[c]
	if !ok {
		return 0, simerr.New(simerr.UnknownComponent, "pool", nil)
	}
	return int(r)*p.width + col, nil
}

// maxExactInt is the largest magnitude an integer id can have and still be
// stored in a float64 without losing precision: 2^53, the width of the
// mantissa.
const maxExactInt = 1 << 53

// Set writes value into (e, c), bumping the column's version counter if the
// write changes presence or value. Rejects NaN writes with InvalidValue;
// NaN is reserved as the absent sentinel. Rejects values whose magnitude
// exceeds 2^53 with Overflow rather than silently truncating an id that no
// longer round-trips through float64.
func (p *Pool) Set(e types.EntityId, c types.ComponentId, value float64) error {
	if math.IsNaN(value) {
		return simerr.New(simerr.InvalidValue, "pool.Set", nil)
	}
	if math.Abs(value) > maxExactInt {
		return simerr.New(simerr.Overflow, "pool.Set", nil)
	}

	idx, err := p.cellIndex(e, c)
	if err != nil {
		return err
	}

	col := p.columnOf[c]
	prev := p.cells[idx]
	wasAbsent := types.IsAbsent(prev)

	if !wasAbsent && prev == value {
		return nil
	}

	p.cells[idx] = value
	if wasAbsent {
		p.count[col]++
	}
	p.versions[col].Add(1)
	return nil
}

// Unset clears (e, c) back to the absent sentinel. A no-op, with no version
// bump, if the cell was already absent.
func (p *Pool) Unset(e types.EntityId, c types.ComponentId) error {
	idx, err := p.cellIndex(e, c)
	if err != nil {
		return err
	}

	col := p.columnOf[c]
	if types.IsAbsent(p.cells[idx]) {
		return nil
	}

	p.cells[idx] = types.Absent
	p.count[col]--
	p.versions[col].Add(1)
	return nil
}

// Get returns (e, c)'s value and true, or (0, false) if absent or unknown.
func (p *Pool) Get(e types.EntityId, c types.ComponentId) (float64, bool) {
	idx, err := p.cellIndex(e, c)
	if err != nil {
		return 0, false
	}
	v := p.cells[idx]
	if types.IsAbsent(v) {
		return 0, false
	}
	return v, true
}

// Has reports whether (e, c) currently holds a present value.
func (p *Pool) Has(e types.EntityId, c types.ComponentId) bool {
	_, ok := p.Get(e, c)
	return ok
}

// Count returns the number of entities with a present value for c.
func (p *Pool) Count(c types.ComponentId) uint64 {
	col, ok := p.columnOf[c]
	if !ok {
		return 0
	}
	return p.count[col]
}

// Version returns c's current version counter.
func (p *Pool) Version(c types.ComponentId) uint64 {
	col, ok := p.columnOf[c]
	if !ok {
		return 0
	}
	return p.versions[col].Load()
}

// AllWith returns every live entity with a present value for c, in
// ascending row-allocation order.
func (p *Pool) AllWith(c types.ComponentId) []types.EntityId {
	col, ok := p.columnOf[c]
	if !ok {
		return nil
	}

	var out []types.EntityId
	for r := row(0); r < p.nextRow; r++ {
		e, live := p.rowEnt[r]
		if !live {
			continue
		}
		if !types.IsAbsent(p.cells[int(r)*p.width+col]) {
			out = append(out, e)
		}
	}
	return out
}

// Width returns the current number of registered columns.
func (p *Pool) Width() int {
	return p.width
}

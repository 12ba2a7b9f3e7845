// Package command implements the per-container command queue: schema
// validation at enqueue time, FIFO drain at the start of each tick, and a
// bounded ring buffer of handler errors that never aborts a tick.
package command

import (
	"fmt"
	"sync"

	"github.com/matchforge/simcore/pkg/log"
	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// Command is a single enqueued, schema-validated request.
type Command struct {
	Name   string
	Params map[string]any
}

// HandlerError is one entry in the bounded command-error log.
type HandlerError struct {
	Command string
	Tick    uint64
	Err     error
}

// Queue is a container's command queue. Commands are validated against
// their module's declared schema at Enqueue time and rejected outright on
// mismatch; valid commands drain in FIFO order at Drain.
type Queue struct {
	mu          sync.Mutex
	containerID string

	descriptors map[string]types.CommandDescriptor
	pending     []Command

	errLog     []HandlerError
	errLogHead int
	errLogCap  int
}

// New creates an empty Queue. errLogCapacity bounds the command-error ring
// buffer.
func New(containerID string, errLogCapacity int) *Queue {
	if errLogCapacity <= 0 {
		errLogCapacity = 1
	}
	return &Queue{
		containerID: containerID,
		descriptors: make(map[string]types.CommandDescriptor),
		errLogCap:   errLogCapacity,
	}
}

// Register installs a command descriptor, replacing any previous
// registration of the same name (used by the module registry on install
// and reload).
func (q *Queue) Register(d types.CommandDescriptor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.descriptors[d.Name] = d
}

// Unregister removes a command descriptor, used when a reload drops a
// module's command declarations.
func (q *Queue) Unregister(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.descriptors, name)
}

// Enqueue validates cmd's payload against its registered schema and, on
// success, appends it to the FIFO. On a schema mismatch the command is not
// queued and BadCommand is returned.
func (q *Queue) Enqueue(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	d, ok := q.descriptors[cmd.Name]
	if !ok {
		metrics.CommandsRejected.WithLabelValues(q.containerID, cmd.Name).Inc()
		return simerr.NewBadCommand("command.Enqueue", fmt.Sprintf("unknown command %q", cmd.Name))
	}

	if err := validate(d.Schema, cmd.Params); err != nil {
		metrics.CommandsRejected.WithLabelValues(q.containerID, cmd.Name).Inc()
		return simerr.NewBadCommand("command.Enqueue", err.Error())
	}

	q.pending = append(q.pending, cmd)
	metrics.CommandsEnqueued.WithLabelValues(q.containerID, cmd.Name).Inc()
	metrics.CommandQueueDepth.WithLabelValues(q.containerID).Set(float64(len(q.pending)))
	return nil
}

func validate(schema types.CommandSchema, params map[string]any) error {
	for _, p := range schema {
		v, present := params[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("missing required param %q", p.Name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return fmt.Errorf("param %q: expected %s", p.Name, p.Type)
		}
	}
	return nil
}

func typeMatches(t types.ParamType, v any) bool {
	switch t {
	case types.ParamTypeFloat:
		switch v.(type) {
		case float32, float64, int, int64:
			return true
		}
		return false
	case types.ParamTypeInt:
		switch v.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case types.ParamTypeString:
		_, ok := v.(string)
		return ok
	case types.ParamTypeBool:
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

// Drain applies every command enqueued before this call, in enqueue order,
// against store at the given tick. Commands enqueued during Drain's own
// execution are not part of this drain: Drain snapshots the pending slice
// up front. Handler errors are appended to the bounded error log and do
// not stop the drain.
func (q *Queue) Drain(store types.Store, tick uint64) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	descriptors := q.descriptors
	q.mu.Unlock()

	metrics.CommandQueueDepth.WithLabelValues(q.containerID).Set(0)

	for _, cmd := range batch {
		d, ok := descriptors[cmd.Name]
		if !ok {
			continue
		}
		if err := d.Handle(store, tick, cmd.Params); err != nil {
			q.recordError(cmd.Name, tick, err)
			metrics.CommandHandlerErrors.WithLabelValues(q.containerID, cmd.Name).Inc()
			log.WithComponent("command").Warn().
				Str("command", cmd.Name).
				Uint64("tick", tick).
				Err(err).
				Msg("command handler error")
		}
	}
}

func (q *Queue) recordError(name string, tick uint64, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := HandlerError{Command: name, Tick: tick, Err: simerr.NewCommandHandlerError("command.Drain", err)}
	if len(q.errLog) < q.errLogCap {
		q.errLog = append(q.errLog, entry)
		return
	}
	q.errLog[q.errLogHead] = entry
	q.errLogHead = (q.errLogHead + 1) % q.errLogCap
}

// Recent returns up to n of the most recently recorded handler errors,
// oldest first.
func (q *Queue) Recent(n int) []HandlerError {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || n > len(q.errLog) {
		n = len(q.errLog)
	}
	if len(q.errLog) < q.errLogCap {
		start := len(q.errLog) - n
		return append([]HandlerError(nil), q.errLog[start:]...)
	}

	ordered := make([]HandlerError, 0, len(q.errLog))
	for i := 0; i < len(q.errLog); i++ {
		ordered = append(ordered, q.errLog[(q.errLogHead+i)%q.errLogCap])
	}
	return ordered[len(ordered)-n:]
}

// Depth returns the number of commands currently pending.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

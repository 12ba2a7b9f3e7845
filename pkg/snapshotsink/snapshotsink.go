// Package snapshotsink implements the optional, embedded durable
// persistence hook a container can attach to its snapshot pipeline: each
// full or delta snapshot is handed to a bounded, drop-oldest queue and
// written to a bbolt bucket keyed by container and match, off the tick's
// hot path.
package snapshotsink

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/matchforge/simcore/pkg/log"
	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/snapshot"
	"github.com/matchforge/simcore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// entry is one queued write.
type entry struct {
	containerID string
	matchID     types.MatchId
	tick        uint64
	kind        string // "full" or "delta"
	payload     []byte
}

// Sink persists snapshots to an embedded bbolt database. Writes are
// queued and drained by a single background goroutine so Persist never
// blocks the caller on disk I/O; when the queue is full, the oldest
// queued write is dropped to make room rather than applying backpressure
// to the tick loop.
type Sink struct {
	db *bolt.DB

	mu       sync.Mutex
	queue    []entry
	capacity int
	notify   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Open creates or opens the bbolt database at path and starts the
// background writer. capacity bounds the pending-write queue.
func Open(path string, capacity int) (*Sink, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshotsink: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshotsink: init bucket: %w", err)
	}

	if capacity <= 0 {
		capacity = 1
	}
	s := &Sink{
		db:       db,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Close stops the background writer and closes the database.
func (s *Sink) Close() error {
	close(s.stopCh)
	<-s.doneCh
	return s.db.Close()
}

// PersistFull queues a full snapshot for durable storage.
func (s *Sink) PersistFull(containerID string, full snapshot.Full) {
	payload, err := json.Marshal(full)
	if err != nil {
		log.WithComponent("snapshotsink").Error().Err(err).Msg("marshal full snapshot")
		return
	}
	s.enqueue(entry{containerID: containerID, matchID: full.MatchID, tick: full.Tick, kind: "full", payload: payload})
}

// PersistDelta queues a delta snapshot for durable storage.
func (s *Sink) PersistDelta(containerID string, delta snapshot.Delta) {
	payload, err := json.Marshal(delta)
	if err != nil {
		log.WithComponent("snapshotsink").Error().Err(err).Msg("marshal delta snapshot")
		return
	}
	s.enqueue(entry{containerID: containerID, matchID: delta.MatchID, tick: delta.ToTick, kind: "delta", payload: payload})
}

func (s *Sink) enqueue(e entry) {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		metrics.SnapshotSinkDropped.WithLabelValues(e.containerID).Inc()
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Sink) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.notify:
			s.drain()
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

func (s *Sink) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.write(e); err != nil {
			log.WithComponent("snapshotsink").Error().
				Str("container", e.containerID).
				Uint64("match", uint64(e.matchID)).
				Err(err).
				Msg("persist snapshot")
		}
	}
}

func (s *Sink) write(e entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		key := []byte(fmt.Sprintf("%s/%d/%s/%020d", e.containerID, e.matchID, e.kind, e.tick))
		return b.Put(key, e.payload)
	})
}

// Get reads back the raw payload stored for one container/match/kind/tick
// key, primarily for recovery and tests.
func (s *Sink) Get(containerID string, matchID types.MatchId, kind string, tick uint64) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		key := []byte(fmt.Sprintf("%s/%d/%s/%020d", containerID, matchID, kind, tick))
		v := b.Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

package snapshotsink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matchforge/simcore/pkg/snapshot"
	"github.com/matchforge/simcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snap.db")
	s, err := Open(path, 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPersistFullRoundTrip(t *testing.T) {
	s := openTestSink(t)
	full := snapshot.Full{MatchID: 1, Tick: 7, Entities: []types.EntityId{1, 2}}
	s.PersistFull("c1", full)

	var payload []byte
	waitFor(t, func() bool {
		v, err := s.Get("c1", 1, "full", 7)
		require.NoError(t, err)
		payload = v
		return v != nil
	})
	assert.Contains(t, string(payload), `"Tick":7`)
}

func TestPersistDeltaRoundTrip(t *testing.T) {
	s := openTestSink(t)
	d := snapshot.Delta{MatchID: 2, FromTick: 1, ToTick: 2, ChangeCount: 3}
	s.PersistDelta("c1", d)

	waitFor(t, func() bool {
		v, err := s.Get("c1", 2, "delta", 2)
		require.NoError(t, err)
		return v != nil
	})
}

func TestEnqueueDropsOldestWhenQueueFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	s, err := Open(path, 1)
	require.NoError(t, err)
	defer s.db.Close()

	// Stop the background writer first, so neither entry can be drained
	// before the queue is observed: the second enqueue must evict the
	// first.
	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.queue = append(s.queue, entry{containerID: "c1", tick: 1})
	s.mu.Unlock()

	s.enqueue(entry{containerID: "c1", tick: 2})

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.queue, 1)
	assert.Equal(t, uint64(2), s.queue[0].tick)
}

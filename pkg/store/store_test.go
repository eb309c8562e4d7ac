package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMarksFrontier(t *testing.T) {
	s := New()

	require.True(t, s.Add(42, []string{"n2", "n3"}, ""))
	assert.True(t, s.Contains(42))
	assert.ElementsMatch(t, []int64{42}, s.Pending("n2"))
	assert.ElementsMatch(t, []int64{42}, s.Pending("n3"))
}

func TestAddExcludesOriginator(t *testing.T) {
	s := New()

	require.True(t, s.Add(7, []string{"n2", "n3"}, "n2"))
	assert.Empty(t, s.Pending("n2"))
	assert.ElementsMatch(t, []int64{7}, s.Pending("n3"))
}

func TestDuplicateAddLeavesFrontierAlone(t *testing.T) {
	s := New()

	require.True(t, s.Add(1, []string{"n2"}, ""))
	s.Drain("n2", []int64{1})

	// A second insert of a known value must not re-queue it.
	require.False(t, s.Add(1, []string{"n2"}, ""))
	assert.Empty(t, s.Pending("n2"))
	assert.Equal(t, 1, s.Len())
}

func TestDrainOnlyRemovesSentBatch(t *testing.T) {
	s := New()
	s.Add(1, []string{"n2"}, "")
	batch := s.Pending("n2")

	// A value learned while the batch is in flight stays pending.
	s.Add(2, []string{"n2"}, "")
	s.Drain("n2", batch)

	assert.ElementsMatch(t, []int64{2}, s.Pending("n2"))
}

func TestPendingPeers(t *testing.T) {
	s := New()
	assert.Empty(t, s.PendingPeers())

	s.Add(5, []string{"n2", "n3"}, "n3")
	assert.ElementsMatch(t, []string{"n2"}, s.PendingPeers())

	s.Drain("n2", []int64{5})
	assert.Empty(t, s.PendingPeers())
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New()
	s.Add(1, nil, "")
	s.Add(2, nil, "")

	snap := s.Snapshot()
	assert.ElementsMatch(t, []int64{1, 2}, snap)

	snap[0] = 99
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2))
}

func TestConcurrentAddsAreIdempotent(t *testing.T) {
	s := New()
	peers := []string{"n2", "n3"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := int64(0); v < 100; v++ {
				s.Add(v, peers, "")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
	assert.Len(t, s.Pending("n2"), 100)
}

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/memograph/memory"
)

func TestPriorityOrdering(t *testing.T) {
	q := NewPriorityQueue(0)

	require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "m1", PriorityLow)))
	require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "m2", PriorityHigh)))
	require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "m3", PriorityMedium)))

	assert.Equal(t, "m2", q.Pop().MemoryID)
	assert.Equal(t, "m3", q.Pop().MemoryID)
	assert.Equal(t, "m1", q.Pop().MemoryID)
	assert.Nil(t, q.Pop())
}

func TestFIFOWithinPriority(t *testing.T) {
	q := NewPriorityQueue(0)
	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", id, PriorityMedium)))
	}

	assert.Equal(t, "m1", q.Pop().MemoryID)
	assert.Equal(t, "m2", q.Pop().MemoryID)
	assert.Equal(t, "m3", q.Pop().MemoryID)
}

// A batch of ten from twenty mixed-priority tasks must contain every high
// and medium task before any low one.
func TestBatchDrainsHighAndMediumFirst(t *testing.T) {
	q := NewPriorityQueue(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "low", PriorityLow)))
		require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "medium", PriorityMedium)))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "high", PriorityHigh)))
		require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "medium", PriorityMedium)))
	}

	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		counts[q.Pop().MemoryID]++
	}
	assert.Equal(t, 5, counts["high"])
	assert.Equal(t, 5, counts["medium"])
	assert.Zero(t, counts["low"])
}

func TestDepthCapEvictsLowestPriority(t *testing.T) {
	q := NewPriorityQueue(2)
	require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "low", PriorityLow)))
	require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "high", PriorityHigh)))

	// Outranks the pending low task: evicts it.
	require.NoError(t, q.Push(NewTask(KindFactExtraction, "o", "medium", PriorityMedium)))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	// Does not outrank anything pending: rejected.
	err := q.Push(NewTask(KindFactExtraction, "o", "low2", PriorityLow))
	assert.ErrorIs(t, err, memory.ErrQueueOverflow)
	assert.Equal(t, uint64(2), q.Dropped())

	assert.Equal(t, "high", q.Pop().MemoryID)
	assert.Equal(t, "medium", q.Pop().MemoryID)
}

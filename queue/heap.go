package queue

import (
	"container/heap"
	"sync"

	"github.com/smallnest/memograph/memory"
)

// taskHeap orders tasks by priority descending, with enqueue order breaking
// ties so equal-priority tasks run first-in first-out.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// PriorityQueue is a bounded, thread-safe priority queue of tasks. When the
// queue is full an arriving task evicts the lowest-priority pending task if
// it outranks it; otherwise the arrival is rejected.
type PriorityQueue struct {
	mu       sync.Mutex
	heap     taskHeap
	maxDepth int
	nextSeq  uint64
	dropped  uint64
}

// NewPriorityQueue creates a queue holding at most maxDepth tasks.
// maxDepth <= 0 means unbounded.
func NewPriorityQueue(maxDepth int) *PriorityQueue {
	return &PriorityQueue{maxDepth: maxDepth}
}

// Push enqueues a task. Returns memory.ErrQueueOverflow when the queue is
// full and the task does not outrank the lowest-priority pending task.
func (q *PriorityQueue) Push(t *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t.seq = q.nextSeq
	q.nextSeq++

	if q.maxDepth > 0 && len(q.heap) >= q.maxDepth {
		victim := q.lowest()
		if victim == nil || victim.Priority >= t.Priority {
			q.dropped++
			return memory.ErrQueueOverflow
		}
		heap.Remove(&q.heap, victim.index)
		q.dropped++
	}

	heap.Push(&q.heap, t)
	return nil
}

// Pop removes and returns the highest-priority task, or nil when empty.
func (q *PriorityQueue) Pop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*Task)
}

// Len returns the number of pending tasks.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Dropped returns how many tasks were evicted or rejected because the queue
// was full.
func (q *PriorityQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// lowest finds the lowest-priority task, oldest last among ties. Linear scan;
// the queue is small and eviction only happens at the depth cap.
func (q *PriorityQueue) lowest() *Task {
	var victim *Task
	for _, t := range q.heap {
		if victim == nil ||
			t.Priority < victim.Priority ||
			(t.Priority == victim.Priority && t.seq > victim.seq) {
			victim = t
		}
	}
	return victim
}

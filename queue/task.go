package queue

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the work a task carries. Handlers are registered per kind.
type Kind string

const (
	// KindRelationshipAnalysis compares a memory against its neighbors and
	// records discovered edges.
	KindRelationshipAnalysis Kind = "relationship_analysis"
	// KindFactExtraction decomposes a memory's content into facts.
	KindFactExtraction Kind = "fact_extraction"
	// KindImportanceRecalc refreshes importance scores from access patterns.
	KindImportanceRecalc Kind = "importance_recalc"
)

// Task priorities. Higher runs first.
const (
	PriorityHigh   = 1.0
	PriorityMedium = 0.5
	PriorityLow    = 0.1
)

// Status tracks a task through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

// Task is one unit of background work.
type Task struct {
	ID       string
	Kind     Kind
	OwnerID  string
	MemoryID string
	Priority float64
	Status   Status

	Attempts   int
	LastError  string
	EnqueuedAt time.Time
	ReadyAt    time.Time

	// seq breaks priority ties in enqueue order.
	seq uint64
	// index is maintained by the heap.
	index int
}

// NewTask creates a pending task for the given memory.
func NewTask(kind Kind, ownerID, memoryID string, priority float64) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		OwnerID:    ownerID,
		MemoryID:   memoryID,
		Priority:   priority,
		Status:     StatusPending,
		EnqueuedAt: now,
		ReadyAt:    now,
	}
}

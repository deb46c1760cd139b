package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrNotFound indicates a memory, fact or relationship does not exist
	// for the given owner.
	ErrNotFound = errors.New("memory not found")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// EmbeddingDim. Vectors are never silently truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrQueueOverflow indicates a low-priority background task was dropped
	// because the queue reached its depth limit.
	ErrQueueOverflow = errors.New("background queue overflow")

	// ErrCircuitOpen indicates background processing is paused by the
	// circuit breaker. Background work waits; no user impact.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// ValidationError reports an invalid field on a caller-supplied value. It is
// surfaced to the caller immediately, unlike provider failures which are
// recovered locally.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ProviderError wraps a failure of an external collaborator (text analysis or
// embedding provider). Callers fall back to local behavior instead of
// surfacing it to the end user.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DedupConflict records an ambiguous merge: a stored fact contradicted the
// incoming content with higher confidence. The write proceeds; the conflict
// is kept for manual resolution.
type DedupConflict struct {
	MemoryID   string
	FactID     string
	Stored     string
	Incoming   string
	Confidence float64
}

func (c *DedupConflict) Error() string {
	return fmt.Sprintf("dedup conflict on memory %s: stored fact retained over incoming content", c.MemoryID)
}

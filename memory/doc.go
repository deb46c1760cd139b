// Package memory defines the core data model of the memory engine: stored
// entries, atomic facts, typed relationships between memories and the shared
// error taxonomy.
//
// # Data Model
//
// An Entry is a single remembered piece of conversational content with a
// closed Category, an importance score clamped to [0,1], a keyword set, a
// fixed-dimension embedding and a semantic hash fingerprint. Entries belong
// to exactly one owner and are never visible across owners.
//
// A Fact is a single proposition decomposed from an entry (a preference,
// attribute, relationship, behavior or goal) with its own confidence. Facts
// live and die with their parent entry.
//
// A Relationship is a directed, typed edge between two memories of the same
// owner (contradicts, supports, elaborates, supersedes or related). The
// relationship graph is cyclic by design; only self-loops are rejected.
//
// # Errors
//
// The package carries the engine-wide error taxonomy: ValidationError for
// rejected caller input, ProviderError for external collaborator failures
// (recovered locally, never surfaced to end users), DedupConflict for
// ambiguous merges flagged for manual review, and the sentinel errors
// ErrNotFound, ErrDimensionMismatch, ErrQueueOverflow and ErrCircuitOpen.
package memory

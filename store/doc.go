// Package store defines the persistence collaborator interface of the memory
// engine and a cosine-similarity helper shared by its backends.
//
// The engine treats storage as an external collaborator: a durable store with
// CRUD for entries, facts and relationships, a nearest-by-vector query and a
// keyword search. Four backends ship with the module:
//
//   - store/memory: in-process reference implementation
//   - store/sqlite: file-based backend on mattn/go-sqlite3
//   - store/redis: Redis-backed implementation on redis/go-redis
//   - store/postgres: PostgreSQL implementation on jackc/pgx
//
// All backends compute vector similarity client-side over the owner's
// entries; they are thin collaborators, not vector search engines. Every
// query is owner-scoped, which is how the engine enforces that a memory is
// never visible across owners.
package store

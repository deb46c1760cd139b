// Package redis provides a Redis-backed persistence collaborator for the
// memory engine.
//
// Entries, facts and relationships are JSON values; per-owner sets index the
// keys so that every query stays owner-scoped. Nearest-neighbor queries fetch
// the owner's entries and rank them client-side, which keeps the backend a
// plain Redis deployment with no modules required.
//
//	st := redis.NewRedisStore(redis.RedisOptions{Addr: "localhost:6379"})
package redis

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	mem "github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// RedisStore implements store.Store on Redis. Entries, facts and
// relationships are JSON values indexed by owner-scoped sets; similarity is
// computed client-side over the owner's entries.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ store.Store = (*RedisStore)(nil)

// RedisOptions configuration for the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "memograph:"
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts.Prefix)
}

// NewRedisStoreWithClient wraps an existing client, useful for testing.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "memograph:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) entryKey(id string) string   { return s.prefix + "mem:" + id }
func (s *RedisStore) factsKey(id string) string   { return s.prefix + "mem:" + id + ":facts" }
func (s *RedisStore) relKey(id string) string     { return s.prefix + "rel:" + id }
func (s *RedisStore) ownerMems(o string) string   { return s.prefix + "owner:" + o + ":mem" }
func (s *RedisStore) ownerRels(o string) string   { return s.prefix + "owner:" + o + ":rel" }
func (s *RedisStore) hashKey(o, h string) string  { return s.prefix + "owner:" + o + ":hash:" + h }

func (s *RedisStore) PutEntry(ctx context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.entryKey(entry.ID), data, 0)
	pipe.SAdd(ctx, s.ownerMems(entry.OwnerID), entry.ID)
	if entry.SemanticHash != "" {
		pipe.Set(ctx, s.hashKey(entry.OwnerID, entry.SemanticHash), entry.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save memory to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetEntry(ctx context.Context, ownerID, id string) (*mem.Entry, error) {
	data, err := s.client.Get(ctx, s.entryKey(id)).Bytes()
	if err == redis.Nil {
		return nil, mem.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory from redis: %w", err)
	}
	var entry mem.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory: %w", err)
	}
	if entry.OwnerID != ownerID {
		return nil, mem.ErrNotFound
	}
	return &entry, nil
}

func (s *RedisStore) UpdateEntry(ctx context.Context, entry *mem.Entry) error {
	old, err := s.GetEntry(ctx, entry.OwnerID, entry.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	pipe := s.client.Pipeline()
	if old.SemanticHash != "" && old.SemanticHash != entry.SemanticHash {
		pipe.Del(ctx, s.hashKey(entry.OwnerID, old.SemanticHash))
	}
	pipe.Set(ctx, s.entryKey(entry.ID), data, 0)
	if entry.SemanticHash != "" {
		pipe.Set(ctx, s.hashKey(entry.OwnerID, entry.SemanticHash), entry.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update memory in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteEntry(ctx context.Context, ownerID, id string) error {
	entry, err := s.GetEntry(ctx, ownerID, id)
	if err != nil {
		return err
	}

	// Drop edges touching the entry before removing it.
	rels, err := s.ListRelationships(ctx, ownerID, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, rel := range rels {
		pipe.Del(ctx, s.relKey(rel.ID))
		pipe.SRem(ctx, s.ownerRels(ownerID), rel.ID)
	}
	pipe.Del(ctx, s.entryKey(id), s.factsKey(id))
	pipe.SRem(ctx, s.ownerMems(ownerID), id)
	if entry.SemanticHash != "" {
		pipe.Del(ctx, s.hashKey(ownerID, entry.SemanticHash))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete memory from redis: %w", err)
	}
	return nil
}

func (s *RedisStore) ListEntries(ctx context.Context, ownerID string) ([]*mem.Entry, error) {
	ids, err := s.client.SMembers(ctx, s.ownerMems(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memories: %w", err)
	}

	var entries []*mem.Entry
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var entry mem.Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (s *RedisStore) FindByHash(ctx context.Context, ownerID, hash string) (*mem.Entry, error) {
	id, err := s.client.Get(ctx, s.hashKey(ownerID, hash)).Result()
	if err == redis.Nil {
		return nil, mem.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up hash: %w", err)
	}
	return s.GetEntry(ctx, ownerID, id)
}

func (s *RedisStore) Nearest(ctx context.Context, ownerID string, vector []float32, k int) ([]store.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	entries, err := s.ListEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	results := make([]store.SearchResult, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		results = append(results, store.SearchResult{Entry: e, Score: store.CosineSimilarity(vector, e.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *RedisStore) SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit int) ([]*mem.Entry, error) {
	entries, err := s.ListEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var matches []*mem.Entry
	for _, e := range entries {
		if entryMatches(e, keywords) {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func entryMatches(e *mem.Entry, keywords []string) bool {
	content := strings.ToLower(e.Content)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(content, kw) {
			return true
		}
		for _, own := range e.Keywords {
			if strings.EqualFold(own, kw) {
				return true
			}
		}
	}
	return false
}

func (s *RedisStore) PutFact(ctx context.Context, ownerID string, fact *mem.Fact) error {
	if !fact.Type.Valid() {
		return &mem.ValidationError{Field: "type", Reason: "unknown fact type: " + string(fact.Type)}
	}
	if _, err := s.GetEntry(ctx, ownerID, fact.MemoryID); err != nil {
		return err
	}
	data, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("failed to marshal fact: %w", err)
	}
	if err := s.client.RPush(ctx, s.factsKey(fact.MemoryID), data).Err(); err != nil {
		return fmt.Errorf("failed to save fact to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) ListFacts(ctx context.Context, ownerID, memoryID string) ([]*mem.Fact, error) {
	if _, err := s.GetEntry(ctx, ownerID, memoryID); err != nil {
		return nil, nil
	}
	values, err := s.client.LRange(ctx, s.factsKey(memoryID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	var facts []*mem.Fact
	for _, v := range values {
		var f mem.Fact
		if err := json.Unmarshal([]byte(v), &f); err != nil {
			continue
		}
		facts = append(facts, &f)
	}
	return facts, nil
}

func (s *RedisStore) PutRelationship(ctx context.Context, rel *mem.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	if _, err := s.GetEntry(ctx, rel.OwnerID, rel.SourceID); err != nil {
		return err
	}
	if _, err := s.GetEntry(ctx, rel.OwnerID, rel.TargetID); err != nil {
		return err
	}
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.relKey(rel.ID), data, 0)
	pipe.SAdd(ctx, s.ownerRels(rel.OwnerID), rel.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save relationship to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) ListRelationships(ctx context.Context, ownerID, memoryID string) ([]*mem.Relationship, error) {
	ids, err := s.client.SMembers(ctx, s.ownerRels(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.relKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationships: %w", err)
	}

	var rels []*mem.Relationship
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var rel mem.Relationship
		if err := json.Unmarshal([]byte(data), &rel); err != nil {
			continue
		}
		if memoryID == "" || rel.SourceID == memoryID || rel.TargetID == memoryID {
			rels = append(rels, &rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].CreatedAt.Before(rels[j].CreatedAt) })
	return rels, nil
}

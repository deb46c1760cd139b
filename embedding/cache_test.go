package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/memograph/memory"
)

type countingEmbedder struct {
	calls int
	dim   int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	dim := e.dim
	if dim == 0 {
		dim = memory.EmbeddingDim
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i%3)
	}
	return vec, nil
}

func TestCacheEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		provider := &countingEmbedder{}
		cache := NewCache(provider, DefaultCacheConfig())

		vec1, hash1, err := cache.Embed(ctx, "owner-1", "I love green tea")
		require.NoError(t, err)
		assert.Len(t, vec1, memory.EmbeddingDim)

		vec2, hash2, err := cache.Embed(ctx, "owner-1", "I love green tea")
		require.NoError(t, err)
		assert.Equal(t, vec1, vec2)
		assert.Equal(t, hash1, hash2)
		assert.Equal(t, 1, provider.calls)

		hits, misses := cache.Stats()
		assert.Equal(t, uint64(1), hits)
		assert.Equal(t, uint64(1), misses)
	})

	t.Run("keys are per owner", func(t *testing.T) {
		provider := &countingEmbedder{}
		cache := NewCache(provider, DefaultCacheConfig())

		_, _, err := cache.Embed(ctx, "owner-1", "same text")
		require.NoError(t, err)
		_, _, err = cache.Embed(ctx, "owner-2", "same text")
		require.NoError(t, err)
		assert.Equal(t, 2, provider.calls)
	})

	t.Run("provider failure is a typed error", func(t *testing.T) {
		provider := &countingEmbedder{err: errors.New("upstream down")}
		cache := NewCache(provider, DefaultCacheConfig())

		_, hash, err := cache.Embed(ctx, "owner-1", "text")
		var perr *memory.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "embedding", perr.Provider)
		// The hash is still usable for exact-match dedup.
		assert.NotEmpty(t, hash)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		provider := &countingEmbedder{dim: 3}
		cache := NewCache(provider, DefaultCacheConfig())

		_, _, err := cache.Embed(ctx, "owner-1", "text")
		assert.ErrorIs(t, err, memory.ErrDimensionMismatch)
	})

	t.Run("lru eviction", func(t *testing.T) {
		provider := &countingEmbedder{}
		cache := NewCache(provider, CacheConfig{MaxEntries: 2, TTL: time.Minute})

		_, _, _ = cache.Embed(ctx, "o", "one")
		_, _, _ = cache.Embed(ctx, "o", "two")
		_, _, _ = cache.Embed(ctx, "o", "three")
		assert.Equal(t, 2, cache.Len())

		// "one" was evicted; embedding it again calls the provider.
		before := provider.calls
		_, _, _ = cache.Embed(ctx, "o", "one")
		assert.Equal(t, before+1, provider.calls)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		provider := &countingEmbedder{}
		cache := NewCache(provider, CacheConfig{MaxEntries: 16, TTL: 10 * time.Millisecond})

		_, _, _ = cache.Embed(ctx, "o", "text")
		time.Sleep(20 * time.Millisecond)
		_, _, _ = cache.Embed(ctx, "o", "text")
		assert.Equal(t, 2, provider.calls)
	})
}

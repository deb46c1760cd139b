package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/memograph/embedding"
	mem "github.com/smallnest/memograph/memory"
	memstore "github.com/smallnest/memograph/store/memory"
)

// vecAt returns a unit vector at the given angle from the reference axis,
// so the cosine against vecAt(0) is cos(theta).
func vecAt(theta float64) []float32 {
	v := make([]float32, mem.EmbeddingDim)
	v[0] = float32(math.Cos(theta))
	v[1] = float32(math.Sin(theta))
	return v
}

// fixedEmbedder maps known texts to fixed vectors and fails on unknown
// ones when strict.
type fixedEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return vecAt(0), nil
}

func newTestEngine(t *testing.T, st *memstore.InMemoryStore, emb embedding.Embedder) *Engine {
	t.Helper()
	var cache *embedding.Cache
	if emb != nil {
		cache = embedding.NewCache(emb, embedding.DefaultCacheConfig())
	}
	return New(st, cache, Config{})
}

func seedEntry(t *testing.T, st *memstore.InMemoryStore, content string, category mem.Category, theta float64, age time.Duration) *mem.Entry {
	t.Helper()
	e := mem.NewEntry("owner-1", content, category)
	e.Embedding = vecAt(theta)
	e.CreatedAt = time.Now().UTC().Add(-age)
	require.NoError(t, st.PutEntry(context.Background(), e))
	return e
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	close := seedEntry(t, st, "I prefer tea over coffee", mem.CategoryPreference, 0.1, time.Hour)
	far := seedEntry(t, st, "My sister lives in Oslo", mem.CategoryPersonalInfo, 0.7, time.Hour)

	eng := newTestEngine(t, st, &fixedEmbedder{})
	resp, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "what hot drinks do I enjoy"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Memories)
	assert.False(t, resp.Degraded)
	assert.Equal(t, close.ID, resp.Memories[0].Entry.ID)

	if len(resp.Memories) > 1 {
		assert.Equal(t, far.ID, resp.Memories[1].Entry.ID)
		assert.Greater(t, resp.Memories[0].Score, resp.Memories[1].Score)
	}
}

func TestRetrieveExcludesStaleIrrelevant(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedEntry(t, st, "I prefer tea over coffee", mem.CategoryPreference, 0.1, time.Hour)
	old := seedEntry(t, st, "Rebooted the router last spring", mem.CategoryContext, 1.5, 90*24*time.Hour)
	oldEntry, err := st.GetEntry(ctx, "owner-1", old.ID)
	require.NoError(t, err)
	oldEntry.ImportanceScore = 0.1
	require.NoError(t, st.UpdateEntry(ctx, oldEntry))

	eng := newTestEngine(t, st, &fixedEmbedder{})
	resp, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "what hot drinks do I enjoy"})
	require.NoError(t, err)
	for _, rm := range resp.Memories {
		assert.NotEqual(t, old.ID, rm.Entry.ID)
	}
}

func TestRetrieveDiversityCap(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	for i := 0; i < 6; i++ {
		seedEntry(t, st, "I prefer tea over coffee and cocoa", mem.CategoryPreference, 0.05, time.Hour)
	}
	seedEntry(t, st, "I am a nurse", mem.CategoryPersonalInfo, 0.2, time.Hour)

	eng := newTestEngine(t, st, &fixedEmbedder{})
	resp, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "tell me about my drinks"})
	require.NoError(t, err)

	perCategory := map[mem.Category]int{}
	for _, rm := range resp.Memories {
		perCategory[rm.Entry.Category]++
	}
	assert.LessOrEqual(t, perCategory[mem.CategoryPreference], 3)
	assert.LessOrEqual(t, len(resp.Memories), 10)
}

func TestRetrieveLimit(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	categories := []mem.Category{
		mem.CategoryPreference, mem.CategoryPersonalInfo,
		mem.CategoryContext, mem.CategoryInstruction,
	}
	for i := 0; i < 12; i++ {
		seedEntry(t, st, "I drink tea every single day", categories[i%len(categories)], 0.05, time.Hour)
	}

	eng := newTestEngine(t, st, &fixedEmbedder{})
	resp, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "tea", Limit: 4})
	require.NoError(t, err)
	assert.Len(t, resp.Memories, 4)
}

func TestRetrieveDegradesOnEmbedFailure(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedEntry(t, st, "I prefer tea over coffee", mem.CategoryPreference, 0.1, time.Hour)

	eng := newTestEngine(t, st, &fixedEmbedder{err: errors.New("provider down")})
	resp, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "tea", Keywords: []string{"tea"}})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Memories)
	assert.Contains(t, resp.Memories[0].Entry.Content, "tea")
}

func TestRetrieveWithoutEmbedderUsesKeywords(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedEntry(t, st, "I prefer tea over coffee", mem.CategoryPreference, 0.1, time.Hour)

	eng := newTestEngine(t, st, nil)
	resp, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "tea drinks"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Memories)
}

func TestRetrieveCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedEntry(t, st, "I prefer tea over coffee", mem.CategoryPreference, 0.1, time.Hour)

	eng := newTestEngine(t, st, &fixedEmbedder{})
	q := Query{OwnerID: "owner-1", Text: "what do I drink"}

	first, err := eng.Retrieve(ctx, q)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := eng.Retrieve(ctx, q)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	eng.Invalidate("owner-1")
	third, err := eng.Retrieve(ctx, q)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
}

func TestRetrieveRecordsAccess(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := seedEntry(t, st, "I prefer tea over coffee", mem.CategoryPreference, 0.1, time.Hour)

	eng := newTestEngine(t, st, &fixedEmbedder{})
	_, err := eng.Retrieve(ctx, Query{OwnerID: "owner-1", Text: "what do I drink"})
	require.NoError(t, err)

	stored, err := st.GetEntry(ctx, "owner-1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
	assert.False(t, stored.LastAccessedAt.IsZero())
}

func TestRetrieveRequiresOwner(t *testing.T) {
	eng := newTestEngine(t, memstore.New(), &fixedEmbedder{})
	_, err := eng.Retrieve(context.Background(), Query{Text: "tea"})
	var verr *mem.ValidationError
	assert.ErrorAs(t, err, &verr)
}

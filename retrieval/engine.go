package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/smallnest/memograph/detect"
	"github.com/smallnest/memograph/embedding"
	"github.com/smallnest/memograph/log"
	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// Query asks for the memories most relevant to a piece of conversation
// context.
type Query struct {
	OwnerID string
	Text    string
	// Keywords supplement the text for lexical matching. Optional.
	Keywords []string
	// Limit caps the result count. Zero means the configured maximum.
	Limit int
}

// Response is a ranked, diversity-filtered set of memories.
type Response struct {
	Memories []*RankedMemory
	// Degraded is set when vector search was unavailable and ranking fell
	// back to lexical matching, or when a deadline cut scoring short.
	Degraded bool
	// FromCache is set when the response was served from the result cache.
	FromCache bool
}

// Config tunes the retrieval engine.
type Config struct {
	Ranker RankerConfig
	// CandidateK is how many nearest memories the vector stage pulls.
	CandidateK int
	// MinThreshold and MaxThreshold bound the dynamic score cut-off.
	MinThreshold float64
	MaxThreshold float64
	// MaxResults caps the response size after diversity filtering.
	MaxResults int
	// MaxPerCategory caps how many results share a category.
	MaxPerCategory int
	// CacheTTL bounds how long a ranked response may be served from cache.
	CacheTTL time.Duration
	// CacheSize caps the number of cached responses.
	CacheSize int

	Logger log.Logger
}

// DefaultConfig returns the production retrieval settings.
func DefaultConfig() Config {
	return Config{
		Ranker:         DefaultRankerConfig(),
		CandidateK:     64,
		MinThreshold:   0.25,
		MaxThreshold:   0.45,
		MaxResults:     10,
		MaxPerCategory: 3,
		CacheTTL:       30 * time.Second,
		CacheSize:      256,
		Logger:         log.Default(),
	}
}

// Engine ranks stored memories against conversation context. It degrades
// rather than fails: a broken embedding provider or vector stage drops it
// to lexical matching, and a context deadline returns whatever was ranked
// in time.
type Engine struct {
	store    store.Store
	embedder *embedding.Cache
	config   Config
	cache    *resultCache
	logger   log.Logger
	now      func() time.Time
}

// New creates a retrieval engine. The embedder may be nil, which disables
// the vector stage entirely.
func New(s store.Store, embedder *embedding.Cache, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Ranker.SemanticWeight == 0 && cfg.Ranker.RecencyWeight == 0 &&
		cfg.Ranker.ImportanceWeight == 0 && cfg.Ranker.FrequencyWeight == 0 {
		cfg.Ranker = def.Ranker
	}
	if cfg.CandidateK <= 0 {
		cfg.CandidateK = def.CandidateK
	}
	if cfg.MaxThreshold == 0 {
		cfg.MinThreshold = def.MinThreshold
		cfg.MaxThreshold = def.MaxThreshold
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.MaxPerCategory <= 0 {
		cfg.MaxPerCategory = def.MaxPerCategory
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return &Engine{
		store:    s,
		embedder: embedder,
		config:   cfg,
		cache:    newResultCache(cfg.CacheSize, cfg.CacheTTL),
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Retrieve returns the memories most relevant to the query, ranked by the
// blended score and filtered for category diversity.
func (e *Engine) Retrieve(ctx context.Context, q Query) (*Response, error) {
	if q.OwnerID == "" {
		return nil, &memory.ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}

	key := fingerprint(q.OwnerID, q.Text, q.Keywords)
	if cached, ok := e.cache.get(key); ok {
		resp := *cached
		resp.FromCache = true
		return &resp, nil
	}

	terms := append(detect.ExtractKeywords(q.Text), q.Keywords...)

	var queryVec []float32
	degraded := e.embedder == nil
	if e.embedder != nil && q.Text != "" {
		vec, _, err := e.embedder.Embed(ctx, q.OwnerID, q.Text)
		if err != nil {
			e.logger.Warn("retrieval: embed query for %s: %v", q.OwnerID, err)
			degraded = true
		} else {
			queryVec = vec
		}
	}

	candidates, vecFailed, err := e.candidates(ctx, q, terms, queryVec)
	if err != nil {
		return nil, err
	}
	degraded = degraded || vecFailed

	now := e.now()
	cut := threshold(terms, e.config.MinThreshold, e.config.MaxThreshold)
	var ranked []*RankedMemory
	for _, entry := range candidates {
		if ctx.Err() != nil {
			// Deadline hit mid-ranking: serve what we have.
			degraded = true
			break
		}
		rm := rank(entry, queryVec, terms, e.config.Ranker, now)
		if rm.Score >= cut {
			ranked = append(ranked, rm)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	ranked = e.diversify(ranked, q.Limit)

	e.touch(ctx, ranked)

	resp := &Response{Memories: ranked, Degraded: degraded}
	e.cache.put(key, q.OwnerID, resp)
	return resp, nil
}

// Invalidate drops the owner's cached responses. The engine facade calls
// this after every write so retrieval never serves stale rankings past a
// mutation.
func (e *Engine) Invalidate(ownerID string) {
	e.cache.invalidate(ownerID)
}

// candidates unions the vector and keyword stages. A vector failure is
// logged and degrades the query to keyword-only rather than failing it.
func (e *Engine) candidates(ctx context.Context, q Query, terms []string, queryVec []float32) ([]*memory.Entry, bool, error) {
	byID := make(map[string]*memory.Entry)
	vecFailed := false

	if len(queryVec) > 0 {
		results, err := e.store.Nearest(ctx, q.OwnerID, queryVec, e.config.CandidateK)
		if err != nil {
			e.logger.Warn("retrieval: vector search for %s: %v", q.OwnerID, err)
			vecFailed = true
		} else {
			for _, r := range results {
				byID[r.Entry.ID] = r.Entry
			}
		}
	}

	if len(terms) > 0 {
		matches, err := e.store.SearchKeywords(ctx, q.OwnerID, terms, e.config.CandidateK)
		if err != nil {
			if len(byID) == 0 {
				return nil, vecFailed, fmt.Errorf("keyword search: %w", err)
			}
			e.logger.Warn("retrieval: keyword search for %s: %v", q.OwnerID, err)
		}
		for _, entry := range matches {
			if _, ok := byID[entry.ID]; !ok {
				byID[entry.ID] = entry
			}
		}
	}

	out := make([]*memory.Entry, 0, len(byID))
	for _, entry := range byID {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, vecFailed, nil
}

// diversify enforces the per-category cap and the overall result limit on
// an already sorted ranking.
func (e *Engine) diversify(ranked []*RankedMemory, limit int) []*RankedMemory {
	if limit <= 0 || limit > e.config.MaxResults {
		limit = e.config.MaxResults
	}
	perCategory := make(map[memory.Category]int)
	var out []*RankedMemory
	for _, rm := range ranked {
		if len(out) >= limit {
			break
		}
		if perCategory[rm.Entry.Category] >= e.config.MaxPerCategory {
			continue
		}
		perCategory[rm.Entry.Category]++
		out = append(out, rm)
	}
	return out
}

// touch records the access on each returned memory. Failures are logged;
// access tracking never blocks a retrieval.
func (e *Engine) touch(ctx context.Context, ranked []*RankedMemory) {
	now := e.now().UTC()
	for _, rm := range ranked {
		rm.Entry.Touch(now)
		if err := e.store.UpdateEntry(ctx, rm.Entry); err != nil {
			e.logger.Warn("retrieval: record access on %s: %v", rm.Entry.ID, err)
		}
	}
}

package retrieval

import (
	"math"
	"strings"
	"time"

	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// RankerConfig holds the scoring weights and shape parameters. The four
// weights should sum to 1.
type RankerConfig struct {
	SemanticWeight   float64
	RecencyWeight    float64
	ImportanceWeight float64
	FrequencyWeight  float64

	// RecencyHalfLife is the age at which the recency factor reaches 0.5.
	RecencyHalfLife time.Duration
	// FrequencySaturation is the access count at which the frequency factor
	// approaches 1.
	FrequencySaturation int
}

// DefaultRankerConfig returns the production weights.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		SemanticWeight:      0.35,
		RecencyWeight:       0.25,
		ImportanceWeight:    0.25,
		FrequencyWeight:     0.15,
		RecencyHalfLife:     7 * 24 * time.Hour,
		FrequencySaturation: 20,
	}
}

// RankedMemory pairs an entry with its blended score and the individual
// factors that produced it.
type RankedMemory struct {
	Entry      *memory.Entry
	Score      float64
	Semantic   float64
	Recency    float64
	Importance float64
	Frequency  float64
}

// rank scores one candidate. The semantic factor is cosine similarity when
// a query vector is available, keyword overlap otherwise.
func rank(entry *memory.Entry, queryVec []float32, queryTerms []string, cfg RankerConfig, now time.Time) *RankedMemory {
	semantic := 0.0
	if len(queryVec) > 0 && len(entry.Embedding) > 0 {
		semantic = math.Max(0, store.CosineSimilarity(queryVec, entry.Embedding))
	} else {
		semantic = keywordOverlap(entry, queryTerms)
	}

	age := now.Sub(entry.CreatedAt)
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-math.Ln2 * age.Hours() / cfg.RecencyHalfLife.Hours())

	frequency := float64(entry.AccessCount) / float64(entry.AccessCount+cfg.FrequencySaturation)

	score := cfg.SemanticWeight*semantic +
		cfg.RecencyWeight*recency +
		cfg.ImportanceWeight*entry.ImportanceScore +
		cfg.FrequencyWeight*frequency

	return &RankedMemory{
		Entry:      entry,
		Score:      score,
		Semantic:   semantic,
		Recency:    recency,
		Importance: entry.ImportanceScore,
		Frequency:  frequency,
	}
}

// keywordOverlap is the fraction of query terms found in the entry's
// content or keyword set.
func keywordOverlap(entry *memory.Entry, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	content := strings.ToLower(entry.Content)
	kws := make(map[string]struct{}, len(entry.Keywords))
	for _, kw := range entry.Keywords {
		kws[strings.ToLower(kw)] = struct{}{}
	}
	hits := 0
	for _, term := range terms {
		term = strings.ToLower(term)
		if _, ok := kws[term]; ok || strings.Contains(content, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// threshold derives the score cut-off from query specificity: vague queries
// accept weaker matches, precise multi-term queries demand stronger ones.
func threshold(terms []string, min, max float64) float64 {
	specificity := float64(len(terms)) / 6.0
	if specificity > 1 {
		specificity = 1
	}
	return min + (max-min)*specificity
}

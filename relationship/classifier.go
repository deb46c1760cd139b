package relationship

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// Classification is the outcome of comparing two memory entries. A nil
// classification (from Classify) means no edge should be recorded.
type Classification struct {
	Type       memory.RelationType
	Strength   float64
	Confidence float64
}

// ClassifierConfig tunes the pairwise classifier.
type ClassifierConfig struct {
	// RelatedThreshold is the minimum cosine similarity for a plain
	// "related" edge.
	RelatedThreshold float64
	// StrongThreshold is the cosine similarity above which a pair is
	// treated as discussing the same thing (supports/elaborates).
	StrongThreshold float64
	// SupersedeWindow separates contradiction from supersession: opposed
	// statements further apart than this window are read as the newer one
	// replacing the older.
	SupersedeWindow time.Duration

	// Confidence blend weights. They should sum to 1.
	SemanticWeight float64
	OverlapWeight  float64
	TemporalWeight float64
}

// DefaultClassifierConfig returns the tuning used in production.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		RelatedThreshold: 0.70,
		StrongThreshold:  0.85,
		SupersedeWindow:  30 * 24 * time.Hour,
		SemanticWeight:   0.5,
		OverlapWeight:    0.3,
		TemporalWeight:   0.2,
	}
}

// antonymPairs are stance markers that flip the meaning of otherwise
// similar statements.
var antonymPairs = [][2]string{
	{"love", "hate"},
	{"like", "dislike"},
	{"enjoy", "avoid"},
	{"always", "never"},
	{"prefer", "refuse"},
	{"start", "stop"},
	{"morning", "evening"},
}

var negationPattern = regexp.MustCompile(`\b(not|no longer|don't|doesn't|won't|stopped|quit)\b`)

// Opposes reports whether two statements take opposite stances. It is a
// lexical test only; callers combine it with semantic similarity to decide
// whether the statements are about the same subject.
func Opposes(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range antonymPairs {
		if (strings.Contains(la, pair[0]) && strings.Contains(lb, pair[1])) ||
			(strings.Contains(la, pair[1]) && strings.Contains(lb, pair[0])) {
			return true
		}
	}
	// One side negated, the other not.
	na, nb := negationPattern.MatchString(la), negationPattern.MatchString(lb)
	return na != nb
}

// oppositionStrength grades how explicit the opposition is. Antonym pairs
// are a stronger signal than a bare negation.
func oppositionStrength(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range antonymPairs {
		if (strings.Contains(la, pair[0]) && strings.Contains(lb, pair[1])) ||
			(strings.Contains(la, pair[1]) && strings.Contains(lb, pair[0])) {
			return 0.95
		}
	}
	if Opposes(a, b) {
		return 0.75
	}
	return 0
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

func contentWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) > 2 {
			words[w] = struct{}{}
		}
	}
	return words
}

// lexicalOverlap is the Jaccard index over content words.
func lexicalOverlap(a, b string) float64 {
	wa, wb := contentWords(a), contentWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	return float64(shared) / float64(union)
}

// temporalProximity decays from 1 toward 0 as the gap between two entries
// grows, with a half-life of one week.
func temporalProximity(a, b time.Time) float64 {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	const halfLife = 7 * 24 * time.Hour
	return math.Exp(-math.Ln2 * gap.Hours() / halfLife.Hours())
}

// Classify compares two entries and returns the relationship between them,
// or nil when they are unrelated. The semantic signal comes from embedding
// cosine similarity when both entries carry vectors, otherwise from lexical
// overlap alone.
func Classify(a, b *memory.Entry, cfg ClassifierConfig) *Classification {
	if a == nil || b == nil || a.ID == b.ID {
		return nil
	}

	overlap := lexicalOverlap(a.Content, b.Content)
	cos := 0.0
	hasVectors := len(a.Embedding) > 0 && len(b.Embedding) > 0
	if hasVectors {
		cos = store.CosineSimilarity(a.Embedding, b.Embedding)
	}

	sameSubject := cos >= cfg.RelatedThreshold || (!hasVectors && overlap >= 0.3)
	opposed := Opposes(a.Content, b.Content)

	var relType memory.RelationType
	semantic := cos
	switch {
	case opposed && sameSubject:
		semantic = oppositionStrength(a.Content, b.Content)
		gap := a.CreatedAt.Sub(b.CreatedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap > cfg.SupersedeWindow {
			relType = memory.RelationSupersedes
		} else {
			relType = memory.RelationContradicts
		}
	case cos >= cfg.StrongThreshold:
		if elaborates(a.Content, b.Content) {
			relType = memory.RelationElaborates
		} else {
			relType = memory.RelationSupports
		}
	case cos >= cfg.RelatedThreshold:
		relType = memory.RelationRelated
	default:
		return nil
	}

	confidence := cfg.SemanticWeight*semantic +
		cfg.OverlapWeight*overlap +
		cfg.TemporalWeight*temporalProximity(a.CreatedAt, b.CreatedAt)

	strength := semantic
	if strength == 0 {
		strength = overlap
	}

	return &Classification{
		Type:       relType,
		Strength:   memory.Clamp01(strength),
		Confidence: memory.Clamp01(confidence),
	}
}

// elaborates reports whether one statement extends the other: the longer
// text covers nearly all content words of the shorter one and adds more.
func elaborates(a, b string) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(longer) < len(shorter)*3/2 {
		return false
	}
	ws, wl := contentWords(shorter), contentWords(longer)
	if len(ws) == 0 {
		return false
	}
	covered := 0
	for w := range ws {
		if _, ok := wl[w]; ok {
			covered++
		}
	}
	return float64(covered)/float64(len(ws)) >= 0.8
}

package detect

import (
	"regexp"
	"strings"

	"github.com/smallnest/memograph/memory"
)

// Heuristic is the local rule-based fallback analyzer. It looks for
// first-person statements with lasting value and extracts keywords by
// stopword filtering. It is deliberately conservative: vague chatter is not
// remembered.
type Heuristic struct{}

// NewHeuristic creates the rule-based analyzer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var (
	preferencePattern   = regexp.MustCompile(`(?i)\bi\s+(?:really\s+)?(?:like|love|prefer|hate|dislike|enjoy|favor|can't stand)\b`)
	personalInfoPattern = regexp.MustCompile(`(?i)\b(?:my name is|i am \d+|i'm \d+|i live in|i work (?:at|as)|my (?:wife|husband|partner|son|daughter|dog|cat|birthday))\b`)
	instructionPattern  = regexp.MustCompile(`(?i)\b(?:always|never|from now on|remember to|please remember|don't ever|make sure)\b`)
	goalPattern         = regexp.MustCompile(`(?i)\b(?:my goal|i want to|i plan to|i'm training for|i aim to)\b`)
	questionPattern     = regexp.MustCompile(`\?\s*$`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "my": {}, "of": {}, "on": {}, "or": {}, "so": {}, "that": {},
	"the": {}, "to": {}, "was": {}, "with": {}, "you": {}, "your": {},
	"im": {}, "me": {}, "am": {}, "do": {}, "have": {}, "this": {},
	"really": {}, "very": {}, "just": {}, "not": {}, "no": {},
}

const maxKeywords = 8

// Analyze applies the rules. It never fails; undecidable content comes back
// with ShouldRemember false.
func (h *Heuristic) Analyze(text string) Decision {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 8 || questionPattern.MatchString(trimmed) {
		return Decision{ShouldRemember: false, Category: memory.CategoryContext, Importance: 0}
	}

	decision := Decision{Category: memory.CategoryContext, Importance: 0.5}
	switch {
	case instructionPattern.MatchString(trimmed):
		decision.ShouldRemember = true
		decision.Category = memory.CategoryInstruction
		decision.Importance = 0.8
	case personalInfoPattern.MatchString(trimmed):
		decision.ShouldRemember = true
		decision.Category = memory.CategoryPersonalInfo
		decision.Importance = 0.7
	case preferencePattern.MatchString(trimmed):
		decision.ShouldRemember = true
		decision.Category = memory.CategoryPreference
		decision.Importance = 0.6
	case goalPattern.MatchString(trimmed):
		decision.ShouldRemember = true
		decision.Category = memory.CategoryContext
		decision.Importance = 0.6
	default:
		return Decision{ShouldRemember: false, Category: memory.CategoryContext, Importance: 0}
	}

	decision.Keywords = ExtractKeywords(trimmed)
	return decision
}

// ExtractKeywords returns up to maxKeywords distinct lowercased content words.
func ExtractKeywords(text string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,!?;:'\"()[]")
		if len(word) < 3 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

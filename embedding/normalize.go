package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// Normalize reduces conversational content to a canonical plain-text form:
// markdown is rendered, all HTML is stripped, entities are unescaped, the
// result is lowercased and whitespace is collapsed. Cache keys and semantic
// hashes are always computed over the normalized form so that formatting
// differences never defeat deduplication.
func Normalize(text string) string {
	rendered := markdown.ToHTML([]byte(text), nil, nil)
	plain := stripPolicy.Sanitize(string(rendered))
	plain = html.UnescapeString(plain)
	plain = strings.ToLower(plain)
	return strings.Join(strings.Fields(plain), " ")
}

// SemanticHash returns the hex-encoded sha256 fingerprint of the normalized
// text. Identical content always hashes identically regardless of markup or
// whitespace, which gives dedup its exact-match short circuit.
func SemanticHash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

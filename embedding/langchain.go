package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

// LangChainEmbedder adapts langchaingo's embeddings.Embedder to our Embedder
// interface, so any provider langchaingo supports can back the cache.
type LangChainEmbedder struct {
	embedder embeddings.Embedder
}

var _ Embedder = (*LangChainEmbedder)(nil)

// NewLangChainEmbedder creates a new adapter for langchaingo embedders.
func NewLangChainEmbedder(embedder embeddings.Embedder) *LangChainEmbedder {
	return &LangChainEmbedder{embedder: embedder}
}

// Embed returns the embedding for a single text using the underlying
// langchaingo embedder.
func (l *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("langchaingo embedder failed: %w", err)
	}
	return vec, nil
}

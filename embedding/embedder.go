package embedding

import (
	"context"

	"github.com/smallnest/memograph/memory"
)

// Embedder produces fixed-dimension vectors for text. Implementations call an
// external provider; the Cache wraps one to avoid repeated calls.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// checkDimension rejects vectors whose length differs from the system
// constant. Vectors are never truncated or padded.
func checkDimension(vec []float32) error {
	if len(vec) != memory.EmbeddingDim {
		return memory.ErrDimensionMismatch
	}
	return nil
}

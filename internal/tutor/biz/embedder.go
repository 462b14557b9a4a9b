package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/tutor-x/pkg/llm"
)

// Embedder 包装嵌入模型并校验向量维度。
type Embedder struct {
	provider  llm.EmbeddingProvider
	dimension int
}

// NewEmbedder creates an Embedder. dimension <= 0 disables the check.
func NewEmbedder(provider llm.EmbeddingProvider, dimension int) *Embedder {
	return &Embedder{provider: provider, dimension: dimension}
}

// Dimension returns the configured vector size.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed embeds texts as one batch.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &EmbeddingError{Err: fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))}
	}
	for i, v := range vectors {
		if err := e.check(v); err != nil {
			return nil, &EmbeddingError{Err: fmt.Errorf("vector %d: %w", i, err)}
		}
	}
	return vectors, nil
}

// EmbedSingle embeds one text.
func (e *Embedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := e.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if err := e.check(v); err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	return v, nil
}

func (e *Embedder) check(v []float32) error {
	if e.dimension > 0 && len(v) != e.dimension {
		return fmt.Errorf("dimension %d, want %d", len(v), e.dimension)
	}
	return nil
}

// Package embedding provides text embedding behind a pluggable interface,
// with ONNX, remote HTTP, and mock implementations.
package embedding

import (
	"context"
	"fmt"
)

// DefaultDimensions is the embedding dimension used when none is configured.
const DefaultDimensions = 384

// Embedder produces fixed-dimension vector embeddings for text. Vectors
// returned by implementations are unit L2-normalized, so inner product
// equals cosine similarity. Implementations are deterministic for a given
// model: the same text always yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelID identifies the underlying model. Persisted indices record it;
	// vectors from different models are not comparable.
	ModelID() string
	Close() error
}

// Error wraps a failure from an embedding model (model unavailable or
// invalid input). Fatal for the build or search call that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

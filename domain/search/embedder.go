// Package search defines the retrieval contracts: the embedding provider
// and the vector index the catalog is kept in lockstep with.
package search

import "context"

// Dimension is the embedding width every provider must produce and the
// index is sized for.
const Dimension = 384

// Embedder converts text into embedding vectors.
type Embedder interface {
	// Embed generates one L2-normalized embedding per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

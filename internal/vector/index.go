// Package vector provides vector index and similarity search.
package vector

import "context"

// Index defines vector storage and similarity search keyed by chunk id.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}

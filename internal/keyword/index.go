// Package keyword provides a full-text index over chunk text.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchOptions are optional parameters for keyword search. Nil means defaults.
type SearchOptions struct {
	// TitleBoost multiplies the contribution of title matches. Values <= 1 disable it.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits.
	FuzzyEnabled bool
	Fuzziness    int
}

// KeywordIndex indexes chunks for term lookup.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	DeleteChunks(ctx context.Context, ids []string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}

// Package search retrieves the chunks that ground an answer.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// ContextSeparator joins chunk texts in the retrieval context.
const ContextSeparator = "\n\n---\n\n"

// DefaultTopK is used when neither the caller nor the configuration sets k.
const DefaultTopK = 3

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Index is the similarity and keyword lookup the retriever runs against.
type Index interface {
	Query(ctx context.Context, text string, k int) ([]*models.QueryHit, error)
	Search(ctx context.Context, terms string, k int) ([]*models.SearchHit, error)
}

// RetrievalError wraps a failure of the underlying index.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Retriever turns a query into ranked chunks, a joined context and the cited sources.
type Retriever struct {
	index  Index
	topK   int
	logger *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = l
	}
}

// NewRetriever returns a retriever over index. topK <= 0 means DefaultTopK.
func NewRetriever(index Index, topK int, opts ...Option) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	r := &Retriever{index: index, topK: topK}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.LoggerOrNop(r.logger)
	return r
}

// TopK returns the default number of chunks retrieved.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve runs one similarity query for up to k chunks. k <= 0 uses the configured top-k.
// Hits keep the index's ranking.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (*models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = r.topK
	}

	start := time.Now()
	hits, err := r.index.Query(ctx, query, k)
	if err != nil {
		return nil, &RetrievalError{Query: query, Err: err}
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	texts := make([]string, len(hits))
	files := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
		files[i] = h.Metadata.SourceFile
	}
	result := &models.RetrievalResult{
		Query:   query,
		Hits:    hits,
		Context: strings.Join(texts, ContextSeparator),
		Sources: UniqueSources(files),
	}
	if result.Hits == nil {
		result.Hits = []*models.QueryHit{}
	}

	r.logger.Debug("retrieved chunks",
		zap.String("query", utils.Truncate(query, 80)),
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
		zap.Strings("sources", result.Sources),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Search runs a keyword lookup for up to limit chunks.
func (r *Retriever) Search(ctx context.Context, terms string, limit int) (*models.SearchResponse, error) {
	if strings.TrimSpace(terms) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}

	start := time.Now()
	hits, err := r.index.Search(ctx, terms, limit)
	if err != nil {
		return nil, &RetrievalError{Query: terms, Err: err}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	files := make([]string, len(hits))
	for i, h := range hits {
		files[i] = h.Metadata.SourceFile
	}
	if hits == nil {
		hits = []*models.SearchHit{}
	}
	return &models.SearchResponse{
		Query:     terms,
		Hits:      hits,
		Sources:   UniqueSources(files),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// UniqueSources drops duplicates and empty names, keeping first-seen order.
func UniqueSources(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

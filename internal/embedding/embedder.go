// Package embedding provides text embedding providers and caching.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
)

// Embedder produces vector embeddings for text. ModelName and Dimensions identify the
// embedding space; a collection built with one embedder can only be queried with the same space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache when cfg.CacheSize > 0.
func New(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case "mock":
		e = NewMockEmbedder(cfg.Dimensions)
	case "ollama":
		e = NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "onnx":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Model, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		e = onnx
	case "gemini":
		gem, err := NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:     cfg.APIKey(),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		e = gem
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if logger != nil {
		logger.Debug("embedder ready",
			zap.String("provider", cfg.Provider),
			zap.String("model", e.ModelName()),
			zap.Int("dimensions", e.Dimensions()),
			zap.Int("cache_size", cfg.CacheSize))
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}

// embedEach embeds texts one request at a time, for providers without a batch endpoint.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

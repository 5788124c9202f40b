// Package llm holds the generation adapters behind rag.Generator.
package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/rag"
)

// New returns the generator selected by cfg.Provider.
func New(ctx context.Context, cfg *config.GenerationConfig) (rag.Generator, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaGenerator(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "claude":
		g, err := NewClaudeGenerator(ClaudeConfig{
			APIKey:     cfg.APIKey(),
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxRetries: 2,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case "gemini":
		g, err := NewGeminiGenerator(ctx, GeminiConfig{
			APIKey:  cfg.APIKey(),
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

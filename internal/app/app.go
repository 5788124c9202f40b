// Package app owns the process-wide handles: embedder, collection, retriever and generator.
// They are built once by Init and released by Shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/kotae/internal/collection"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/loader"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Mode selects which handles Init builds.
type Mode int

const (
	// ModeQuery opens an existing collection and wires retrieval and generation.
	ModeQuery Mode = iota
	// ModeBuild creates a fresh collection and wires the indexer.
	ModeBuild
	// ModeInspect opens an existing collection for keyword search and stats only.
	ModeInspect
)

func (m Mode) String() string {
	switch m {
	case ModeQuery:
		return "query"
	case ModeBuild:
		return "build"
	case ModeInspect:
		return "inspect"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrAlreadyInitialized is returned by Init when handles exist and Shutdown was not called.
	ErrAlreadyInitialized = errors.New("app already initialized")
	// ErrNotInitialized is returned by Current before Init.
	ErrNotInitialized = errors.New("app not initialized")
)

// Components are the handles shared by every request in the process.
// Indexer is set in ModeBuild; Retriever, Generator and Assistant in ModeQuery; Retriever alone in ModeInspect.
type Components struct {
	Config     *config.Config
	Mode       Mode
	Embedder   embedding.Embedder
	Collection *collection.Collection
	Indexer    *indexer.Indexer
	Retriever  *search.Retriever
	Generator  rag.Generator
	Assistant  *rag.Assistant
	Logger     *zap.Logger
}

// Close releases the collection and the embedder.
func (c *Components) Close() error {
	var errs []error
	if c.Collection != nil {
		errs = append(errs, c.Collection.Close())
	}
	if c.Embedder != nil {
		errs = append(errs, c.Embedder.Close())
	}
	return errors.Join(errs...)
}

var (
	mu      sync.Mutex
	current *Components
)

// Init builds the handles for mode. A second call fails with ErrAlreadyInitialized until Shutdown.
func Init(ctx context.Context, cfg *config.Config, logger *zap.Logger, mode Mode) (*Components, error) {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return nil, ErrAlreadyInitialized
	}
	c, err := build(ctx, cfg, utils.LoggerOrNop(logger), mode)
	if err != nil {
		return nil, err
	}
	current = c
	return c, nil
}

// Current returns the handles built by Init.
func Current() (*Components, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, ErrNotInitialized
	}
	return current, nil
}

// Shutdown closes the handles. It is a no-op when nothing is initialized.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	return err
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, mode Mode) (*Components, error) {
	// Fail on chunking settings before touching the collection.
	chunker, err := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.New(ctx, &cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Config: cfg, Mode: mode, Embedder: embedder, Logger: logger}

	loc, name := cfg.Storage.IndexLocation, cfg.Storage.IndexName
	collOpts := []collection.Option{collection.WithLogger(logger)}
	switch mode {
	case ModeBuild:
		c.Collection, err = collection.Create(ctx, loc, name, embedder, collOpts...)
	case ModeQuery, ModeInspect:
		c.Collection, err = collection.Open(ctx, loc, name, embedder, collOpts...)
	default:
		err = fmt.Errorf("unknown mode %v", mode)
	}
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	switch mode {
	case ModeBuild:
		c.Indexer = indexer.NewIndexer(c.Collection, chunker,
			indexer.WithLogger(logger),
			indexer.WithLoader(loader.New(loader.WithLogger(logger))),
			indexer.WithMinContentLength(cfg.Ingest.MinContentLength),
			indexer.WithExtensions(cfg.Ingest.Extensions),
		)
	case ModeQuery:
		c.Generator, err = llm.New(ctx, &cfg.Generation)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		c.Retriever = search.NewRetriever(c.Collection, cfg.Retrieval.TopK, search.WithLogger(logger))
		c.Assistant = rag.NewAssistant(c.Retriever, c.Generator,
			rag.WithLogger(logger),
			rag.WithTimeout(cfg.Generation.Timeout),
			rag.WithGenerateOptions(rag.GenerateOptions{
				MaxTokens:   cfg.Generation.MaxTokens,
				Temperature: cfg.Generation.TemperatureOrDefault(),
			}),
		)
	case ModeInspect:
		c.Retriever = search.NewRetriever(c.Collection, cfg.Retrieval.TopK, search.WithLogger(logger))
	}

	logger.Info("components initialized",
		zap.String("mode", mode.String()),
		zap.String("collection", c.Collection.Dir()),
		zap.String("embedding_model", embedder.ModelName()),
		zap.Int("dimensions", embedder.Dimensions()))
	return c, nil
}

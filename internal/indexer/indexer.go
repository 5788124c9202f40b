package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/loader"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrInsufficientContent marks a document too short to be worth indexing.
var ErrInsufficientContent = errors.New("insufficient content")

// ErrNoCorpusFiles is returned when the corpus directory holds no loadable files.
var ErrNoCorpusFiles = errors.New("no corpus files")

// IndexError reports a failed add for one document. The run continues with the next document.
type IndexError struct {
	SourceFile string
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s: %v", e.SourceFile, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Collection is the write side of a vector collection.
type Collection interface {
	Add(ctx context.Context, ids, texts []string, metadatas []models.ChunkMetadata) error
}

// Indexer turns documents into chunks and adds them to a collection.
// Chunk ids come from one counter shared across every document of the run and are never reused.
type Indexer struct {
	collection       Collection
	chunker          *Chunker
	loader           *loader.Loader
	minContentLength int
	extensions       []string
	seq              int64
	logger           *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger for per-document progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLoader sets the loader used by Run. Defaults to loader.New().
func WithLoader(l *loader.Loader) IndexerOption {
	return func(idx *Indexer) { idx.loader = l }
}

// WithMinContentLength skips documents whose text has fewer than n characters.
func WithMinContentLength(n int) IndexerOption {
	return func(idx *Indexer) { idx.minContentLength = n }
}

// WithExtensions sets which corpus files Run picks up.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// NewIndexer creates an indexer writing to collection.
func NewIndexer(collection Collection, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		collection:       collection,
		chunker:          chunker,
		minContentLength: 100,
		extensions:       []string{".html", ".htm"},
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.LoggerOrNop(idx.logger)
	if idx.loader == nil {
		idx.loader = loader.New(loader.WithLogger(idx.logger))
	}
	return idx
}

// IndexDocument chunks doc and adds all of its chunks in one call. It returns the number of
// chunks added. Short documents return ErrInsufficientContent; a failed add returns *IndexError.
func (idx *Indexer) IndexDocument(ctx context.Context, doc *models.Document) (int, error) {
	if utils.RuneLen(doc.Text) < idx.minContentLength {
		return 0, fmt.Errorf("%s: %w", doc.SourceFile, ErrInsufficientContent)
	}
	texts := idx.chunker.Split(doc.Text)
	if len(texts) == 0 {
		return 0, fmt.Errorf("%s: %w", doc.SourceFile, ErrInsufficientContent)
	}

	ids := make([]string, len(texts))
	metas := make([]models.ChunkMetadata, len(texts))
	for i := range texts {
		ids[i] = fmt.Sprintf("chunk_%d", idx.seq)
		idx.seq++
		metas[i] = models.ChunkMetadata{Title: doc.Title, SourceFile: doc.SourceFile}
	}
	idx.logger.Debug("indexer chunked document",
		zap.String("source_file", doc.SourceFile),
		zap.Int("chunks", len(texts)),
		zap.String("first_id", ids[0]))

	if err := idx.collection.Add(ctx, ids, texts, metas); err != nil {
		return 0, &IndexError{SourceFile: doc.SourceFile, Err: err}
	}
	return len(texts), nil
}

// NextSeq returns the value the next chunk id will use.
func (idx *Indexer) NextSeq() int64 { return idx.seq }

// FindCorpus lists the corpus files of dir and fails with ErrNoCorpusFiles when there are none.
func FindCorpus(dir string, exts []string) ([]string, error) {
	files, err := loader.Discover(dir, exts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w with extensions %v found in %s", ErrNoCorpusFiles, exts, dir)
	}
	return files, nil
}

// Run indexes every corpus file under dir, one at a time in lexical path order.
// Per-file failures are logged and counted; the summary is returned whenever discovery succeeds.
func (idx *Indexer) Run(ctx context.Context, dir string) (*models.BuildSummary, error) {
	files, err := FindCorpus(dir, idx.extensions)
	if err != nil {
		return nil, err
	}

	summary := &models.BuildSummary{RunID: uuid.New().String(), Files: len(files)}
	start := time.Now()
	idx.logger.Info("build started",
		zap.String("run_id", summary.RunID),
		zap.String("dir", dir),
		zap.Int("files", len(files)))

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}
		name := filepath.Base(path)
		log := idx.logger.With(zap.Int("file", i+1), zap.Int("of", len(files)), zap.String("source_file", name))

		doc, err := idx.loader.LoadFile(path)
		if err != nil {
			log.Warn("skipping unreadable file", zap.Error(err))
			summary.Failed++
			continue
		}
		n, err := idx.IndexDocument(ctx, doc)
		switch {
		case errors.Is(err, ErrInsufficientContent):
			log.Info("skipping document: not enough content", zap.Int("chars", utils.RuneLen(doc.Text)))
			summary.Skipped++
		case err != nil:
			log.Warn("failed to add chunks", zap.Error(err))
			summary.Failed++
		default:
			log.Info("document indexed", zap.Int("chunks", n))
			summary.Processed++
			summary.ChunksAdded += n
		}
	}

	summary.Elapsed = time.Since(start)
	idx.logger.Info("build finished",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("chunks", summary.ChunksAdded),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

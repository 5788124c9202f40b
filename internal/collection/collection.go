// Package collection is the persisted vector index a corpus is ingested into and queried from.
//
// A collection lives in <location>/<name>/ and is made of three parts that are
// written together on every Add:
//
//	chunks.db      sqlite rows for chunk text and metadata, plus the collection record
//	vectors.bin    the embedding of every chunk, flushed on Close
//	keyword.bleve  a full-text index over chunk text
package collection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

const (
	chunksFile  = "chunks.db"
	vectorsFile = "vectors.bin"
	keywordDir  = "keyword.bleve"
)

var (
	// ErrCollectionExists is returned by Create when the target directory is already present.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrCollectionNotFound is returned by Open when there is nothing to open.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrEmbedderMismatch is returned by Open when the embedder differs from the one used at build time.
	ErrEmbedderMismatch = errors.New("embedder does not match collection")
	// ErrIncomplete is returned by Open when the vectors do not cover every stored chunk.
	ErrIncomplete = errors.New("collection is incomplete")
	// ErrClosed is returned by operations on a closed collection.
	ErrClosed = errors.New("collection is closed")
)

// Collection stores chunks with their embeddings and answers similarity queries.
type Collection struct {
	dir      string
	info     *models.CollectionInfo
	embedder embedding.Embedder
	store    storage.Storage
	vectors  vector.Index
	keywords keyword.KeywordIndex
	logger   *zap.Logger

	mu      sync.Mutex
	nextSeq int64
	dirty   bool
	closed  bool
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) {
		c.logger = l
	}
}

// Dir returns the collection directory for location and name.
func Dir(location, name string) string {
	return filepath.Join(location, name)
}

// Create builds an empty collection at <location>/<name>. It never reuses an existing directory.
func Create(ctx context.Context, location, name string, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	dir := Dir(location, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, dir)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat collection dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create collection dir: %w", err)
	}

	c, err := create(ctx, dir, name, embedder, opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	c.logger.Info("collection created",
		zap.String("dir", dir),
		zap.String("id", c.info.ID),
		zap.String("embedding_model", c.info.EmbeddingModel),
		zap.Int("dimensions", c.info.Dimensions))
	return c, nil
}

func create(ctx context.Context, dir, name string, embedder embedding.Embedder, opts []Option) (*Collection, error) {
	c := newCollection(dir, embedder, opts)

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, fmt.Errorf("create chunk storage: %w", err)
	}
	c.store = store

	c.info = &models.CollectionInfo{
		ID:             uuid.NewString(),
		Name:           name,
		EmbeddingModel: embedder.ModelName(),
		Dimensions:     embedder.Dimensions(),
		CreatedAt:      time.Now(),
	}
	if err := store.SaveCollection(ctx, c.info); err != nil {
		c.closeParts()
		return nil, fmt.Errorf("save collection record: %w", err)
	}

	vectors, err := vector.NewMemoryIndex(c.info.Dimensions)
	if err != nil {
		c.closeParts()
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	c.vectors = vectors
	// Write the empty file now so an interrupted build is detectable on Open.
	if err := vectors.Save(filepath.Join(dir, vectorsFile)); err != nil {
		c.closeParts()
		return nil, err
	}

	keywords, err := keyword.NewBleveIndex(filepath.Join(dir, keywordDir))
	if err != nil {
		c.closeParts()
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	c.keywords = keywords
	return c, nil
}

// Open loads an existing collection. The embedder must produce vectors of the
// same model and width as the one the collection was built with.
func Open(ctx context.Context, location, name string, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	dir := Dir(location, name)
	dbPath := filepath.Join(dir, chunksFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, dir)
	}

	c := newCollection(dir, embedder, opts)
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open chunk storage: %w", err)
	}
	c.store = store

	if err := c.open(ctx); err != nil {
		c.closeParts()
		return nil, err
	}
	c.logger.Info("collection opened",
		zap.String("dir", dir),
		zap.String("id", c.info.ID),
		zap.Int64("chunks", c.nextSeq))
	return c, nil
}

func (c *Collection) open(ctx context.Context) error {
	info, err := c.store.GetCollection(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s has no collection record", ErrCollectionNotFound, c.dir)
	}
	if err != nil {
		return fmt.Errorf("read collection record: %w", err)
	}
	c.info = info

	if info.EmbeddingModel != c.embedder.ModelName() || info.Dimensions != c.embedder.Dimensions() {
		return fmt.Errorf("%w: built with %s (%d dims), got %s (%d dims)", ErrEmbedderMismatch,
			info.EmbeddingModel, info.Dimensions, c.embedder.ModelName(), c.embedder.Dimensions())
	}

	count, err := c.store.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	c.nextSeq = count

	vectors, err := vector.NewMemoryIndex(info.Dimensions)
	if err != nil {
		return err
	}
	vecPath := filepath.Join(c.dir, vectorsFile)
	if _, err := os.Stat(vecPath); err != nil {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, vectorsFile)
	}
	if err := vectors.Load(vecPath); err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	if int64(vectors.Size()) != count {
		return fmt.Errorf("%w: %d vectors for %d chunks", ErrIncomplete, vectors.Size(), count)
	}
	c.vectors = vectors

	keywords, err := keyword.OpenBleveIndex(filepath.Join(c.dir, keywordDir))
	if err != nil {
		return fmt.Errorf("open keyword index: %w", err)
	}
	c.keywords = keywords
	return nil
}

func newCollection(dir string, embedder embedding.Embedder, opts []Option) *Collection {
	c := &Collection{dir: dir, embedder: embedder}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.LoggerOrNop(c.logger)
	return c
}

// Info returns the collection record.
func (c *Collection) Info() *models.CollectionInfo {
	return c.info
}

// Dir returns the collection directory.
func (c *Collection) Dir() string {
	return c.dir
}

// Add embeds texts and stores them under ids with their metadata. The three
// slices must have equal length. Ids already present fail the whole batch, and
// a batch that fails is not stored at all.
func (c *Collection) Add(ctx context.Context, ids, texts []string, metadatas []models.ChunkMetadata) error {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return fmt.Errorf("length mismatch: %d ids, %d texts, %d metadatas", len(ids), len(texts), len(metadatas))
	}
	if len(ids) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	embeddings, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
	}

	chunks := make([]*models.Chunk, len(ids))
	for i := range ids {
		chunks[i] = &models.Chunk{
			ID:        ids[i],
			Seq:       c.nextSeq + int64(i),
			Text:      texts[i],
			Metadata:  metadatas[i],
			Embedding: embeddings[i],
		}
	}

	if err := c.store.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	if err := c.keywords.IndexChunks(ctx, chunks); err != nil {
		c.discard(ids, false)
		return fmt.Errorf("index keywords: %w", err)
	}
	if err := c.vectors.Add(ctx, ids, embeddings); err != nil {
		c.discard(ids, true)
		return fmt.Errorf("add vectors: %w", err)
	}
	c.nextSeq += int64(len(chunks))
	c.dirty = true

	c.logger.Debug("chunks added",
		zap.Int("count", len(chunks)),
		zap.String("first_id", ids[0]),
		zap.String("source_file", metadatas[0].SourceFile))
	return nil
}

// discard removes a batch whose add failed part way, so a failed add leaves no
// retrievable chunks behind. Runs without the caller's context, which may be done.
func (c *Collection) discard(ids []string, keywords bool) {
	ctx := context.Background()
	if err := c.store.DeleteChunks(ctx, ids); err != nil {
		c.logger.Error("failed to remove chunks of a failed add", zap.String("first_id", ids[0]), zap.Error(err))
	}
	if !keywords {
		return
	}
	if err := c.keywords.DeleteChunks(ctx, ids); err != nil {
		c.logger.Error("failed to remove keyword entries of a failed add", zap.String("first_id", ids[0]), zap.Error(err))
	}
}

// Query embeds text and returns up to k chunks ranked by similarity, most similar first.
func (c *Collection) Query(ctx context.Context, text string, k int) ([]*models.QueryHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	queryVec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := c.vectors.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ids := make([]string, len(results))
	scores := make(map[string]float64, len(results))
	for i, r := range results {
		ids[i] = r.ID
		scores[r.ID] = r.Score
	}
	chunks, err := c.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	if len(chunks) != len(ids) {
		c.logger.Warn("vector hits without chunk rows", zap.Int("hits", len(ids)), zap.Int("rows", len(chunks)))
	}

	hits := make([]*models.QueryHit, 0, len(chunks))
	for _, ch := range chunks {
		hits = append(hits, &models.QueryHit{
			ID:       ch.ID,
			Text:     ch.Text,
			Metadata: ch.Metadata,
			Score:    scores[ch.ID],
		})
	}
	return hits, nil
}

// Search runs a keyword match over chunk text and titles and returns up to k chunks.
func (c *Collection) Search(ctx context.Context, terms string, k int) ([]*models.SearchHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	results, err := c.keywords.Search(ctx, terms, k, &keyword.SearchOptions{TitleBoost: 2})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	ids := make([]string, len(results))
	scores := make(map[string]float64, len(results))
	for i, r := range results {
		ids[i] = r.ID
		scores[r.ID] = r.Score
	}
	chunks, err := c.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	hits := make([]*models.SearchHit, 0, len(chunks))
	for i, ch := range chunks {
		hits = append(hits, &models.SearchHit{
			ID:       ch.ID,
			Text:     ch.Text,
			Metadata: ch.Metadata,
			Score:    scores[ch.ID],
			Rank:     i + 1,
		})
	}
	return hits, nil
}

// Stats reports chunk, vector and keyword counts plus per-source totals and disk usage.
func (c *Collection) Stats(ctx context.Context) (*models.CollectionStats, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	count, err := c.store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	sources, err := c.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	docs, err := c.keywords.DocCount()
	if err != nil {
		return nil, fmt.Errorf("keyword doc count: %w", err)
	}
	disk, err := storage.DiskUsageBytes(c.dir)
	if err != nil {
		c.logger.Debug("disk usage unavailable", zap.Error(err))
	}
	return &models.CollectionStats{
		Info:        c.info,
		Chunks:      count,
		Vectors:     c.vectors.Size(),
		KeywordDocs: docs,
		Sources:     sources,
		DiskBytes:   disk,
	}, nil
}

// Flush writes the vectors to disk if anything was added since the last flush.
func (c *Collection) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.flush()
}

func (c *Collection) flush() error {
	if !c.dirty {
		return nil
	}
	if err := c.vectors.Save(filepath.Join(c.dir, vectorsFile)); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	c.dirty = false
	return nil
}

// Close persists the vectors and releases every part. Calling Close twice is a no-op.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.flush()
	if cerr := c.closeParts(); err == nil {
		err = cerr
	}
	return err
}

func (c *Collection) closeParts() error {
	var errs []error
	if c.keywords != nil {
		errs = append(errs, c.keywords.Close())
	}
	if c.vectors != nil {
		errs = append(errs, c.vectors.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	return errors.Join(errs...)
}

func (c *Collection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Package models defines core data structures for documents, chunks, retrieval results and answers.
package models

import "time"

// Document is one cleaned corpus file. Only its chunks are persisted.
type Document struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
	Path       string `json:"-"`
}

// ChunkMetadata is the fixed metadata record stored with every chunk.
type ChunkMetadata struct {
	Title      string `json:"title" db:"title"`
	SourceFile string `json:"source_file" db:"source_file"`
}

// Chunk is a size-bounded slice of a document's text, the unit stored in the index.
type Chunk struct {
	ID        string        `json:"id" db:"id"`
	Seq       int64         `json:"seq" db:"seq"`
	Text      string        `json:"text" db:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"-" db:"-"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// CollectionInfo describes a persisted collection and the embedder it was built with.
type CollectionInfo struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	EmbeddingModel string    `json:"embedding_model" db:"embedding_model"`
	Dimensions     int       `json:"dimensions" db:"dimensions"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SourceStat is the number of chunks stored for one source file.
type SourceStat struct {
	SourceFile string `json:"source_file"`
	Title      string `json:"title"`
	Chunks     int64  `json:"chunks"`
}

// CollectionStats summarises a collection's persisted state.
type CollectionStats struct {
	Info        *CollectionInfo `json:"collection"`
	Chunks      int64           `json:"chunks"`
	Vectors     int             `json:"vectors"`
	KeywordDocs uint64          `json:"keyword_docs"`
	Sources     []SourceStat    `json:"sources"`
	DiskBytes   int64           `json:"disk_bytes"`
}

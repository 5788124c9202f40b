// Package storage defines the persistence interface for a collection's chunks.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines collection metadata and chunk persistence operations.
type Storage interface {
	// Collection metadata
	SaveCollection(ctx context.Context, info *models.CollectionInfo) error
	GetCollection(ctx context.Context) (*models.CollectionInfo, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error)
	DeleteChunks(ctx context.Context, ids []string) error

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	ListSources(ctx context.Context) ([]models.SourceStat, error)

	Close() error
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collection (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		embedding_model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL,
		source_file TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_file ON chunks(source_file);
	CREATE INDEX IF NOT EXISTS idx_chunks_seq ON chunks(seq);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCollection records the collection identity. A collection database holds exactly one row.
func (s *SQLiteStorage) SaveCollection(ctx context.Context, info *models.CollectionInfo) error {
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collection (id, name, embedding_model, dimensions, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.Name, info.EmbeddingModel, info.Dimensions, info.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCollection returns the collection identity, or ErrNotFound if none was saved.
func (s *SQLiteStorage) GetCollection(ctx context.Context) (*models.CollectionInfo, error) {
	var info models.CollectionInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, embedding_model, dimensions, created_at FROM collection LIMIT 1`,
	).Scan(&info.ID, &info.Name, &info.EmbeddingModel, &info.Dimensions, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection metadata: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// BatchCreateChunks inserts multiple chunks in a transaction. Duplicate ids fail the whole batch.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, seq, title, source_file, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Seq, chunk.Metadata.Title, chunk.Metadata.SourceFile, chunk.Text, chunk.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

const chunkColumns = `id, seq, title, source_file, content, created_at`

func scanChunk(row interface{ Scan(...any) error }) (*models.Chunk, error) {
	var c models.Chunk
	if err := row.Scan(&c.ID, &c.Seq, &c.Metadata.Title, &c.Metadata.SourceFile, &c.Text, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	c, err := scanChunk(s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	return c, err
}

// GetChunks returns the chunks for ids in the order of ids. Unknown ids are omitted.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*models.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*models.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeleteChunks removes chunks by ID in one transaction. Unknown ids are ignored.
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// ListSources returns the chunk count per source file, ordered by file name.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]models.SourceStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_file, MIN(title), COUNT(*) FROM chunks GROUP BY source_file ORDER BY source_file`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.SourceStat
	for rows.Next() {
		var st models.SourceStat
		if err := rows.Scan(&st.SourceFile, &st.Title, &st.Chunks); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

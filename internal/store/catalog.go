package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// Catalog is the durable SQLite record of ingested documents. Vectors live in
// per-document index artifacts on disk; the catalog holds document metadata
// and chunk text so the library can be listed and reloaded across restarts.
type Catalog struct {
	db *sql.DB
}

// NewCatalog opens or creates a SQLite database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func NewCatalog(dbPath string) (*Catalog, error) {
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

	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		metadata TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS document_chunks (
		document_id TEXT NOT NULL,
		chunk_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		start_pos INTEGER NOT NULL,
		end_pos INTEGER NOT NULL,
		PRIMARY KEY (document_id, chunk_id),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON document_chunks(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveDocument inserts a document and its chunks in a single transaction, so
// a crash mid-write never leaves a document without its chunks.
func (c *Catalog) SaveDocument(ctx context.Context, info models.DocumentInfo, chunks []models.Chunk) error {
	metadataJSON, err := json.Marshal(info.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, metadata, chunk_count, created_at)
		 VALUES (?, ?, ?, ?)`,
		info.ID, string(metadataJSON), len(chunks), info.CreatedAt,
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (document_id, chunk_id, text, start_pos, end_pos)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, info.ID, chunk.ID, chunk.Text, chunk.StartPos, chunk.EndPos); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteDocument removes a document and its chunks.
func (c *Catalog) DeleteDocument(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDocuments returns all documents in insertion order.
func (c *Catalog) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, metadata, chunk_count, created_at
		 FROM documents ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.DocumentInfo
	for rows.Next() {
		var info models.DocumentInfo
		var metadataJSON string
		if err := rows.Scan(&info.ID, &metadataJSON, &info.ChunkCount, &info.CreatedAt); err != nil {
			return nil, err
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &info.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", info.ID, err)
			}
		}
		docs = append(docs, info)
	}
	return docs, rows.Err()
}

// GetChunks returns all chunks for a document ordered by chunk ID.
func (c *Catalog) GetChunks(ctx context.Context, docID string) ([]models.Chunk, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT chunk_id, text, start_pos, end_pos
		 FROM document_chunks WHERE document_id = ? ORDER BY chunk_id`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.Text, &chunk.StartPos, &chunk.EndPos); err != nil {
			return nil, err
		}
		chunk.Length = chunk.EndPos - chunk.StartPos
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// CountDocuments returns the total number of documents.
func (c *Catalog) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks across all documents.
func (c *Catalog) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiori/internal/vector"
)

// SQLiteStorage implements Storage using SQLite. Embeddings are stored as
// JSON text.
type SQLiteStorage struct {
	sqlStore
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{
		sqlStore: sqlStore{db: db, embeddingAs: "e.embedding"},
		path:     dbPath,
	}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_owner ON books(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		book_id TEXT REFERENCES books(id) ON DELETE SET NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notes_book ON notes(book_id);

	CREATE TABLE IF NOT EXISTS note_embeddings (
		note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		embedding TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (note_id, model)
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_model ON note_embeddings(model);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveEmbedding stores v for the note and model, replacing any previous one.
func (s *SQLiteStorage) SaveEmbedding(ctx context.Context, noteID string, model vector.ModelTag, v vector.Vector) error {
	if noteID == "" || model == "" {
		return fmt.Errorf("%w: note id and model are required", ErrInvalidInput)
	}
	serialized, err := vector.Encode(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO note_embeddings (note_id, model, embedding, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(note_id, model) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at`,
		noteID, string(model), serialized, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Driver returns "sqlite".
func (s *SQLiteStorage) Driver() string { return "sqlite" }

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.path }

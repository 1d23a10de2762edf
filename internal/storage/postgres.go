package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/hyperjump/shiori/internal/vector"
)

// PostgresStorage implements Storage on PostgreSQL with the pgvector extension.
// Embeddings live in a vector column and are read back in its text form.
type PostgresStorage struct {
	sqlStore
}

// NewPostgresStorage connects to url and initializes the schema.
func NewPostgresStorage(ctx context.Context, url string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := initPostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStorage{
		sqlStore: sqlStore{db: db, numbered: true, embeddingAs: "e.embedding::text"},
	}, nil
}

func initPostgresSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_owner ON books(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			book_id TEXT REFERENCES books(id) ON DELETE SET NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_book ON notes(book_id)`,
		`CREATE TABLE IF NOT EXISTS note_embeddings (
			note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			model TEXT NOT NULL,
			embedding vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (note_id, model)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_model ON note_embeddings(model)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveEmbedding stores v for the note and model, replacing any previous one.
func (s *PostgresStorage) SaveEmbedding(ctx context.Context, noteID string, model vector.ModelTag, v vector.Vector) error {
	if noteID == "" || model == "" {
		return fmt.Errorf("%w: note id and model are required", ErrInvalidInput)
	}
	if _, err := vector.Encode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO note_embeddings (note_id, model, embedding, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (note_id, model) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at`,
		noteID, string(model), pgvector.NewVector([]float32(v)), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Driver returns "postgres".
func (s *PostgresStorage) Driver() string { return "postgres" }

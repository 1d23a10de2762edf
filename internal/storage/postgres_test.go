package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"
)

// SHIORI_TEST_POSTGRES_URL points at a scratch database with pgvector installed.
const postgresURLEnv = "SHIORI_TEST_POSTGRES_URL"

func newTestPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	url := os.Getenv(postgresURLEnv)
	if url == "" {
		t.Skipf("%s not set", postgresURLEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := NewPostgresStorage(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	resetPostgres(t, store.db)
	t.Cleanup(func() {
		resetPostgres(t, store.db)
		_ = store.Close()
	})
	return store
}

func resetPostgres(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec(`TRUNCATE note_embeddings, notes, books`); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresStorage_Books(t *testing.T) {
	runBookTests(t, newTestPostgres(t))
}

func TestPostgresStorage_Notes(t *testing.T) {
	runNoteTests(t, newTestPostgres(t))
}

func TestPostgresStorage_Embeddings(t *testing.T) {
	runEmbeddingTests(t, newTestPostgres(t))
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/vector"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func TestSQLiteStorage_Books(t *testing.T) {
	runBookTests(t, newTestSQLite(t))
}

func TestSQLiteStorage_Notes(t *testing.T) {
	runNoteTests(t, newTestSQLite(t))
}

func TestSQLiteStorage_Embeddings(t *testing.T) {
	runEmbeddingTests(t, newTestSQLite(t))
}

func TestSQLiteStorage_Driver(t *testing.T) {
	store := newTestSQLite(t)
	if store.Driver() != "sqlite" {
		t.Errorf("Driver() = %s", store.Driver())
	}
	if filepath.Base(store.Path()) != "test.db" {
		t.Errorf("Path() = %s", store.Path())
	}
}

func TestRebindPlaceholders(t *testing.T) {
	s := &sqlStore{numbered: true}
	got := s.q(`SELECT * FROM notes WHERE id = ? AND owner_id = ?`)
	if got != `SELECT * FROM notes WHERE id = $1 AND owner_id = $2` {
		t.Errorf("rebind: %s", got)
	}
	s.numbered = false
	if s.q("a = ?") != "a = ?" {
		t.Error("sqlite queries must be left unchanged")
	}
}

// The run* helpers exercise the shared contract against any backend.

func runBookTests(t *testing.T, store Storage) {
	ctx := context.Background()
	for i, title := range []string{"Dune", "Solaris"} {
		b := &models.Book{ID: "book" + string(rune('1'+i)), OwnerID: "alice", Title: title, Author: "someone"}
		if err := store.CreateBook(ctx, b); err != nil {
			t.Fatal(err)
		}
		if b.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := store.CreateBook(ctx, &models.Book{ID: "x", OwnerID: "bob", Title: "Other"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetBook(ctx, "alice", "book1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Dune" || got.Author != "someone" {
		t.Errorf("got %+v", got)
	}
	if _, err := store.GetBook(ctx, "bob", "book1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other owner should not see the book, got %v", err)
	}

	list, err := store.ListBooks(ctx, "alice", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Title != "Solaris" {
		t.Errorf("expected newest first, got %d books", len(list))
	}
	n, err := store.CountBooks(ctx, "alice")
	if err != nil || n != 2 {
		t.Errorf("CountBooks = %d, %v", n, err)
	}
	if err := store.CreateBook(ctx, &models.Book{Title: "missing ids"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func runNoteTests(t *testing.T, store Storage) {
	ctx := context.Background()
	if err := store.CreateBook(ctx, &models.Book{ID: "b1", OwnerID: "alice", Title: "Dune"}); err != nil {
		t.Fatal(err)
	}
	for i, text := range []string{"first", "second", "third"} {
		n := &models.Note{ID: "n" + string(rune('1'+i)), OwnerID: "alice", Text: text}
		if i == 1 {
			n.BookID = strPtr("b1")
		}
		if err := store.CreateNote(ctx, n); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	got, err := store.GetNote(ctx, "alice", "n2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "second" || got.BookID == nil || *got.BookID != "b1" {
		t.Errorf("got %+v", got)
	}
	if _, err := store.GetNote(ctx, "mallory", "n2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	page, err := store.ListNotes(ctx, "alice", models.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "n3" || page[1].ID != "n2" {
		t.Errorf("expected n3,n2 got %v", noteIDs(page))
	}
	page, err = store.ListNotes(ctx, "alice", models.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "n1" {
		t.Errorf("expected n1 got %v", noteIDs(page))
	}
	inBook, err := store.ListNotes(ctx, "alice", models.ListOptions{Limit: 10, BookID: strPtr("b1")})
	if err != nil {
		t.Fatal(err)
	}
	if len(inBook) != 1 || inBook[0].ID != "n2" {
		t.Errorf("book filter: got %v", noteIDs(inBook))
	}

	upd := &models.Note{ID: "n1", OwnerID: "alice", Text: "first, revised"}
	if err := store.SaveNote(ctx, upd); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetNote(ctx, "alice", "n1")
	if got.Text != "first, revised" {
		t.Errorf("SaveNote did not update: %+v", got)
	}
	if err := store.SaveNote(ctx, &models.Note{ID: "n4", OwnerID: "alice", Text: "new"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountNotes(ctx, "alice"); n != 4 {
		t.Errorf("CountNotes = %d, want 4", n)
	}

	if err := store.DeleteNote(ctx, "alice", "n4"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteNote(ctx, "alice", "n4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteNote(ctx, "bob", "n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign delete: expected ErrNotFound, got %v", err)
	}
}

func runEmbeddingTests(t *testing.T, store Storage) {
	ctx := context.Background()
	const model = vector.ModelTag("test-model")
	if err := store.CreateBook(ctx, &models.Book{ID: "b1", OwnerID: "alice", Title: "Dune"}); err != nil {
		t.Fatal(err)
	}
	notes := []*models.Note{
		{ID: "a", OwnerID: "alice", Text: "alpha"},
		{ID: "b", OwnerID: "alice", Text: "beta", BookID: strPtr("b1")},
		{ID: "c", OwnerID: "alice", Text: "gamma"},
		{ID: "z", OwnerID: "bob", Text: "other owner"},
	}
	for _, n := range notes {
		if err := store.CreateNote(ctx, n); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	for _, id := range []string{"a", "b", "z"} {
		if err := store.SaveEmbedding(ctx, id, model, vector.Vector{0.6, 0.8}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SaveEmbedding(ctx, "c", "other-model", vector.Vector{1, 0}); err != nil {
		t.Fatal(err)
	}
	// Replacing keeps one row per note and model.
	if err := store.SaveEmbedding(ctx, "a", model, vector.Vector{1, 0}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListEmbeddedNotes(ctx, EmbeddingFilter{OwnerID: "alice", Model: model})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].NoteID != "a" || got[1].NoteID != "b" {
		t.Fatalf("expected a,b in insertion order, got %d rows", len(got))
	}
	v, err := vector.Decode(got[0].Embedding)
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 2 || v[0] != 1 || v[1] != 0 {
		t.Errorf("embedding for a = %v, want [1 0]", v)
	}
	if got[1].Text != "beta" || got[1].Model != model || got[1].BookID == nil {
		t.Errorf("row b = %+v", got[1])
	}

	inBook, err := store.ListEmbeddedNotes(ctx, EmbeddingFilter{OwnerID: "alice", Model: model, BookID: strPtr("b1")})
	if err != nil {
		t.Fatal(err)
	}
	if len(inBook) != 1 || inBook[0].NoteID != "b" {
		t.Errorf("book filter: got %d rows", len(inBook))
	}

	missing, err := store.ListNotesWithoutEmbedding(ctx, "alice", model)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0].ID != "c" {
		t.Errorf("missing embeddings: got %v", noteIDs(missing))
	}
	if n, _ := store.CountEmbeddings(ctx, "alice", model); n != 2 {
		t.Errorf("CountEmbeddings = %d, want 2", n)
	}

	// Changing the text drops embeddings computed from the old text.
	if err := store.SaveNote(ctx, &models.Note{ID: "b", OwnerID: "alice", Text: "beta, edited", BookID: strPtr("b1")}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountEmbeddings(ctx, "alice", model); n != 1 {
		t.Errorf("after edit CountEmbeddings = %d, want 1", n)
	}

	if err := store.DeleteNote(ctx, "alice", "a"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountEmbeddings(ctx, "alice", model); n != 0 {
		t.Errorf("after delete CountEmbeddings = %d, want 0", n)
	}

	if _, err := store.ListEmbeddedNotes(ctx, EmbeddingFilter{OwnerID: "alice"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing model: expected ErrInvalidInput, got %v", err)
	}
	if err := store.SaveEmbedding(ctx, "c", model, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty vector: expected ErrInvalidInput, got %v", err)
	}
}

func noteIDs(notes []*models.Note) []string {
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

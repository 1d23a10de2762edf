package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/vector"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL backends.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db          *sql.DB
	numbered    bool   // $1-style placeholders
	embeddingAs string // select expression yielding the embedding as text
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateBook inserts a book, setting CreatedAt.
func (s *sqlStore) CreateBook(ctx context.Context, book *models.Book) error {
	if book.ID == "" || book.OwnerID == "" {
		return fmt.Errorf("%w: book id and owner are required", ErrInvalidInput)
	}
	book.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO books (id, owner_id, title, author, created_at) VALUES (?, ?, ?, ?, ?)`),
		book.ID, book.OwnerID, book.Title, book.Author, book.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBook returns the owner's book by ID.
func (s *sqlStore) GetBook(ctx context.Context, ownerID, id string) (*models.Book, error) {
	var b models.Book
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, owner_id, title, author, created_at FROM books WHERE id = ? AND owner_id = ?`),
		id, ownerID,
	).Scan(&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks returns the owner's books, newest first.
func (s *sqlStore) ListBooks(ctx context.Context, ownerID string, offset, limit int) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, owner_id, title, author, created_at FROM books
		 WHERE owner_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.CreatedAt); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}

// CreateNote inserts a note, setting CreatedAt.
func (s *sqlStore) CreateNote(ctx context.Context, note *models.Note) error {
	if note.ID == "" || note.OwnerID == "" {
		return fmt.Errorf("%w: note id and owner are required", ErrInvalidInput)
	}
	note.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO notes (id, owner_id, book_id, text, created_at) VALUES (?, ?, ?, ?, ?)`),
		note.ID, note.OwnerID, note.BookID, note.Text, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// SaveNote inserts the note or replaces its text and book. Changing the text
// drops stale embeddings.
func (s *sqlStore) SaveNote(ctx context.Context, note *models.Note) error {
	existing, err := s.GetNote(ctx, note.OwnerID, note.ID)
	if errors.Is(err, ErrNotFound) {
		return s.CreateNote(ctx, note)
	}
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(
		`UPDATE notes SET book_id = ?, text = ? WHERE id = ? AND owner_id = ?`),
		note.BookID, note.Text, note.ID, note.OwnerID,
	); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if existing.Text != note.Text {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM note_embeddings WHERE note_id = ?`), note.ID); err != nil {
			return fmt.Errorf("failed to drop stale embeddings: %w", err)
		}
	}
	note.CreatedAt = existing.CreatedAt
	return tx.Commit()
}

// GetNote returns the owner's note by ID.
func (s *sqlStore) GetNote(ctx context.Context, ownerID, id string) (*models.Note, error) {
	var n models.Note
	var bookID sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, owner_id, book_id, text, created_at FROM notes WHERE id = ? AND owner_id = ?`),
		id, ownerID,
	).Scan(&n.ID, &n.OwnerID, &bookID, &n.Text, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	n.BookID = nullString(bookID)
	return &n, nil
}

// ListNotes returns the owner's notes, newest first, optionally for one book.
func (s *sqlStore) ListNotes(ctx context.Context, ownerID string, opts models.ListOptions) ([]*models.Note, error) {
	query := `SELECT id, owner_id, book_id, text, created_at FROM notes WHERE owner_id = ?`
	args := []any{ownerID}
	if opts.BookID != nil {
		query += ` AND book_id = ?`
		args = append(args, *opts.BookID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)
	return s.queryNotes(ctx, query, args...)
}

// ListNotesWithoutEmbedding returns the owner's notes lacking an embedding for model, oldest first.
func (s *sqlStore) ListNotesWithoutEmbedding(ctx context.Context, ownerID string, model vector.ModelTag) ([]*models.Note, error) {
	return s.queryNotes(ctx,
		`SELECT id, owner_id, book_id, text, created_at FROM notes n
		 WHERE owner_id = ? AND NOT EXISTS (
			SELECT 1 FROM note_embeddings e WHERE e.note_id = n.id AND e.model = ?)
		 ORDER BY created_at, id`,
		ownerID, string(model))
}

func (s *sqlStore) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		var n models.Note
		var bookID sql.NullString
		if err := rows.Scan(&n.ID, &n.OwnerID, &bookID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.BookID = nullString(bookID)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// DeleteNote removes the owner's note and its embeddings.
func (s *sqlStore) DeleteNote(ctx context.Context, ownerID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM notes WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM note_embeddings WHERE note_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return tx.Commit()
}

// ListEmbeddedNotes returns notes with an embedding for filter.Model, oldest
// first so that ranking ties resolve in insertion order.
func (s *sqlStore) ListEmbeddedNotes(ctx context.Context, filter EmbeddingFilter) ([]*models.EmbeddedNote, error) {
	if filter.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidInput)
	}
	query := `SELECT n.id, n.book_id, n.text, e.model, ` + s.embeddingAs + `
		FROM notes n JOIN note_embeddings e ON e.note_id = n.id
		WHERE n.owner_id = ? AND e.model = ?`
	args := []any{filter.OwnerID, string(filter.Model)}
	if filter.BookID != nil {
		query += ` AND n.book_id = ?`
		args = append(args, *filter.BookID)
	}
	query += ` ORDER BY n.created_at, n.id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EmbeddedNote
	for rows.Next() {
		var en models.EmbeddedNote
		var bookID sql.NullString
		var model string
		if err := rows.Scan(&en.NoteID, &bookID, &en.Text, &model, &en.Embedding); err != nil {
			return nil, err
		}
		en.BookID = nullString(bookID)
		en.Model = vector.ModelTag(model)
		out = append(out, &en)
	}
	return out, rows.Err()
}

// CountBooks returns the number of books the owner has.
func (s *sqlStore) CountBooks(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM books WHERE owner_id = ?`, ownerID)
}

// CountNotes returns the number of notes the owner has.
func (s *sqlStore) CountNotes(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM notes WHERE owner_id = ?`, ownerID)
}

// CountEmbeddings returns the number of the owner's notes embedded with model.
func (s *sqlStore) CountEmbeddings(ctx context.Context, ownerID string, model vector.ModelTag) (int64, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM note_embeddings e JOIN notes n ON n.id = e.note_id
		 WHERE n.owner_id = ? AND e.model = ?`,
		ownerID, string(model))
}

func (s *sqlStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.q(query), args...).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

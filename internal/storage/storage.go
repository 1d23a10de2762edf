// Package storage persists books, notes and note embeddings.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/vector"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another owner.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a write is missing required fields.
	ErrInvalidInput = errors.New("invalid input")
)

// EmbeddingFilter scopes ListEmbeddedNotes. Model is required.
type EmbeddingFilter struct {
	OwnerID string
	Model   vector.ModelTag
	BookID  *string
}

// Storage defines book, note and embedding persistence. Every read is scoped to an owner.
type Storage interface {
	// Book operations
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, ownerID, id string) (*models.Book, error)
	ListBooks(ctx context.Context, ownerID string, offset, limit int) ([]*models.Book, error)

	// Note operations
	CreateNote(ctx context.Context, note *models.Note) error
	SaveNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, ownerID, id string) (*models.Note, error)
	ListNotes(ctx context.Context, ownerID string, opts models.ListOptions) ([]*models.Note, error)
	DeleteNote(ctx context.Context, ownerID, id string) error

	// Embedding operations
	SaveEmbedding(ctx context.Context, noteID string, model vector.ModelTag, v vector.Vector) error
	ListEmbeddedNotes(ctx context.Context, filter EmbeddingFilter) ([]*models.EmbeddedNote, error)
	ListNotesWithoutEmbedding(ctx context.Context, ownerID string, model vector.ModelTag) ([]*models.Note, error)

	// Stats
	CountBooks(ctx context.Context, ownerID string) (int64, error)
	CountNotes(ctx context.Context, ownerID string) (int64, error)
	CountEmbeddings(ctx context.Context, ownerID string, model vector.ModelTag) (int64, error)

	Driver() string
	Close() error
}

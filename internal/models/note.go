// Package models defines the data structures shared by storage, the search
// engine and the HTTP API.
package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/shiori/internal/vector"
)

// Limits on note input and listing.
const (
	MaxNoteChars     = 10000
	MaxTitleChars    = 500
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Book groups notes. Books belong to one owner.
type Book struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author,omitempty" db:"author"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Note is a short piece of text, optionally attached to a book.
type Note struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	BookID    *string   `json:"book_id" db:"book_id"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EmbeddedNote is a note joined with its stored embedding for one model.
// Embedding is the serialized vector as persisted.
type EmbeddedNote struct {
	NoteID    string
	BookID    *string
	Text      string
	Model     vector.ModelTag
	Embedding string
}

// BookInput is the input for creating a book.
type BookInput struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// Validate trims fields and checks the title.
func (b *BookInput) Validate() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	if b.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", vector.ErrInvalidParameter)
	}
	if utf8.RuneCountInString(b.Title) > MaxTitleChars {
		return fmt.Errorf("%w: title exceeds %d characters", vector.ErrInvalidParameter, MaxTitleChars)
	}
	return nil
}

// NoteInput is the input for creating a note.
type NoteInput struct {
	ID     string  `json:"id,omitempty"`
	Text   string  `json:"text"`
	BookID *string `json:"book_id,omitempty"`
}

// Validate checks the text length (1 to MaxNoteChars characters).
func (n *NoteInput) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return fmt.Errorf("%w: text cannot be empty", vector.ErrInvalidParameter)
	}
	if utf8.RuneCountInString(n.Text) > MaxNoteChars {
		return fmt.Errorf("%w: text exceeds %d characters", vector.ErrInvalidParameter, MaxNoteChars)
	}
	if n.BookID != nil && strings.TrimSpace(*n.BookID) == "" {
		n.BookID = nil
	}
	return nil
}

// ListOptions pages through notes or books.
type ListOptions struct {
	Offset int
	Limit  int
	BookID *string
}

// Validate applies the default limit and checks bounds.
func (o *ListOptions) Validate() error {
	if o.Limit == 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit < 1 || o.Limit > MaxListLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", vector.ErrInvalidParameter, MaxListLimit, o.Limit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", vector.ErrInvalidParameter, o.Offset)
	}
	return nil
}

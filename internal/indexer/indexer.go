// Package indexer imports plain-text files from disk as notes.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shiori/internal/fileid"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"go.uber.org/zap"
)

// NoteStore is the part of the note engine the indexer writes through.
type NoteStore interface {
	ImportNote(ctx context.Context, owner string, input *models.NoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, owner, id string) error
}

// Indexer turns files into notes owned by a single user. Each file maps to
// one note whose ID is derived from the owner and the file's absolute path,
// so re-importing a file updates the same note.
type Indexer struct {
	notes  NoteStore
	owner  string
	bookID *string
	logger *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file imported, note deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBook attaches every imported note to the given book. An empty id is ignored.
func WithBook(id string) IndexerOption {
	return func(idx *Indexer) {
		if id != "" {
			idx.bookID = &id
		}
	}
}

// NewIndexer creates an indexer that imports files as notes of owner.
func NewIndexer(notes NoteStore, owner string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{notes: notes, owner: owner}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// NoteID returns the note ID used for the file at path.
func (idx *Indexer) NoteID(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return fileid.NoteID(idx.owner, absPath), nil
}

// IndexFile reads the file at path and imports its contents as a note. If
// allowedExts is non-empty, the file's extension must be in the list
// (case-insensitive). Empty files are skipped. Importing an unchanged file
// does not re-embed it.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) error {
	if idx.logger != nil {
		idx.logger.Debug("indexer importing file", zap.String("path", path))
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		if idx.logger != nil {
			idx.logger.Debug("indexer skipping empty file", zap.String("path", absPath))
		}
		return nil
	}
	noteID := fileid.NoteID(idx.owner, absPath)
	if _, err := idx.notes.ImportNote(ctx, idx.owner, &models.NoteInput{
		ID:     noteID,
		Text:   string(content),
		BookID: idx.bookID,
	}); err != nil {
		return fmt.Errorf("import %s: %w", absPath, err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer file imported", zap.String("path", absPath), zap.String("note_id", noteID))
	}
	return nil
}

// RemoveFile deletes the note imported from path. A file that was never
// imported is not an error.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	noteID, err := idx.NoteID(path)
	if err != nil {
		return err
	}
	if err := idx.notes.DeleteNote(ctx, idx.owner, noteID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer note deleted", zap.String("path", path), zap.String("note_id", noteID))
	}
	return nil
}

// IndexDirectory walks dir and imports each regular file whose extension is
// in allowedExts (all files when empty). Subdirectories are only visited when
// recursive is set. Returns the number of files imported and the first error
// encountered, if any.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are imported
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if indexErr := idx.IndexFile(ctx, path, allowedExts); indexErr != nil {
			return indexErr
		}
		n++
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

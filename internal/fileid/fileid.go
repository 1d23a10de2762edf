// Package fileid derives stable note IDs for imported files.
package fileid

import (
	"path/filepath"

	"github.com/google/uuid"
)

// namespace scopes file-derived IDs so they never collide with random note IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shiori:file"))

// NoteID returns a stable note ID for the file at absolutePath imported by
// owner. The same owner and cleaned path always yield the same ID.
func NoteID(owner, absolutePath string) string {
	name := owner + "\x00" + filepath.Clean(absolutePath)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sqliteSuffixes are the files SQLite keeps for one database in WAL mode.
var sqliteSuffixes = []string{"", "-wal", "-shm"}

// DatabaseSize reports the bytes used by the SQLite database at path,
// including its write-ahead log and shared-memory index. Files that do not
// exist count as zero.
func DatabaseSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	var size int64
	for _, suffix := range sqliteSuffixes {
		info, err := os.Stat(path + suffix)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return 0, err
		case !info.Mode().IsRegular():
			return 0, &fs.PathError{Op: "size", Path: path + suffix, Err: errors.New("not a regular file")}
		}
		size += info.Size()
	}
	return size, nil
}

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/chatsearch/internal/errors"
)

// Backend names an index implementation.
type Backend string

const (
	// BackendSQLite stores messages in an SQLite FTS5 table (default).
	BackendSQLite Backend = "sqlite"

	// BackendBleve stores messages in a Bleve index directory.
	BackendBleve Backend = "bleve"
)

const indexBaseName = "messages"

var errClosed = errors.New(errors.ErrCodeInternal, "index is closed", nil)

// Open creates a Store for backend. basePath has no extension; ".db" or
// ".bleve" is appended. An empty basePath opens an in-memory store.
func Open(basePath string, backend string, config Config) (Store, error) {
	switch Backend(backend) {
	case BackendSQLite, "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteStore(path, config)

	case BackendBleve:
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveStore(path, config)

	default:
		return nil, errors.ConfigError(
			fmt.Sprintf("unknown store backend: %s (valid options: sqlite, bleve)", backend), nil)
	}
}

// BasePath returns the extension-less index path inside dataDir.
func BasePath(dataDir string) string {
	return filepath.Join(dataDir, indexBaseName)
}

// Detect reports which backend an existing index under basePath uses, or ""
// when none exists.
func Detect(basePath string) Backend {
	if info, err := os.Stat(basePath + ".db"); err == nil && !info.IsDir() {
		return BackendSQLite
	}
	if info, err := os.Stat(basePath + ".bleve"); err == nil && info.IsDir() {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the on-disk location of the index for backend.
func IndexPath(dataDir string, backend string) string {
	if Backend(backend) == BackendBleve {
		return BasePath(dataDir) + ".bleve"
	}
	return BasePath(dataDir) + ".db"
}

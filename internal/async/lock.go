package async

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock held while a rebuild runs.
const LockFileName = "indexing.lock"

// FileLock is a cross-process advisory lock on <dir>/indexing.lock.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates an unlocked lock for dir.
func NewFileLock(dir string) *FileLock {
	path := filepath.Join(dir, LockFileName)
	return &FileLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It returns false when another
// process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// IsLockedElsewhere reports whether some other holder currently owns the
// rebuild lock in dir.
func IsLockedElsewhere(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		return false
	}
	probe := NewFileLock(dir)
	acquired, err := probe.TryLock()
	if err != nil {
		return false
	}
	if acquired {
		_ = probe.Unlock()
		return false
	}
	return true
}

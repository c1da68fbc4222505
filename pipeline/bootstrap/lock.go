package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a file-based leader lock. Only the process holding it may fire
// the bootstrap gate, so two runners sharing a data directory cannot seed
// the same pipeline twice.
type Lock struct {
	path  string
	flock *flock.Flock
}

// NewLock creates a lock on the given path.
func NewLock(path string) *Lock {
	return &Lock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. Returns false when another
// process holds it.
func (l *Lock) Acquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire bootstrap lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

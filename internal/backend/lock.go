package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrStoreLocked is returned when another process already holds an
// on-disk catalog or index.
var ErrStoreLocked = errors.New("store locked by another process")

// storeLock guards an on-disk store with a cross-process file lock, so
// a second seqscout invocation pointed at the same path fails fast
// instead of racing the first one. The lock file lives next to the
// store at <path>.lock.
type storeLock struct {
	fl *flock.Flock
}

// acquireStoreLock takes the lock for path without blocking.
func acquireStoreLock(path string) (*storeLock, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock %s: %w", lockPath, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
	}
	return &storeLock{fl: fl}, nil
}

// release drops the lock. Safe on a nil lock, which is what in-memory
// stores carry.
func (l *storeLock) release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}

package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long a refresh waits for another process.
const DefaultLockTimeout = 500 * time.Millisecond

// Locker serializes token refreshes across processes with an advisory file lock.
//
// Acquisition is fail-open: when the lock cannot be taken within the timeout the caller
// proceeds unlocked, and concurrent writers resolve last-write-wins.
type Locker struct {
	path    string
	timeout time.Duration
}

// NewLocker creates a lock at path. An empty path yields a no-op locker.
func NewLocker(path string, timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{path: path, timeout: timeout}
}

// Lock returns a release function, which is always safe to call.
//
// acquired is false when the lock was skipped (no path or timeout).
func (l *Locker) Lock(ctx context.Context) (release func(), acquired bool, err error) {
	noop := func() {}
	if l == nil || l.path == "" {
		return noop, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return noop, false, err
	}

	fl := flock.New(l.path)

	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return noop, false, nil
		}
		return noop, false, err
	}
	if !locked {
		return noop, false, nil
	}

	return func() { _ = fl.Unlock() }, true, nil
}

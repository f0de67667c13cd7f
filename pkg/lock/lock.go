// Package lock provides cross-host advisory file locking for guarding
// sidecar reads and writes: shared locks may coexist, exclusive locks
// exclude all others, and acquisition backs off exponentially until a
// timeout elapses.
package lock

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/wrenfield/anchorline/pkg/crerr"
)

// Mode selects shared (read) or exclusive (write) locking semantics.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// DefaultTimeout is the default deadline for lock acquisition.
const DefaultTimeout = 5 * time.Second

// maxBackoff caps the exponential backoff between try-acquire attempts.
const maxBackoff = 100 * time.Millisecond

// Lock represents a held advisory lock on a file. Release must be called
// exactly once to release it and close the underlying file handle.
type Lock struct {
	file *os.File
	mode Mode
}

// Acquire opens (creating if necessary) the file at path and blocks,
// polling with exponential backoff, until a lock of the given mode is
// obtained or timeout elapses. The returned Lock must be released via
// Release on every exit path, typically via defer.
func Acquire(path string, mode Mode, timeout time.Duration, logger *zap.Logger) (*Lock, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, crerr.IOFailuref(err, "creating parent directory for lock file %s", path)
	}

	// O_APPEND: never truncates an existing lock file's content.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, crerr.IOFailuref(err, "opening lock file %s", path)
	}

	start := time.Now()
	backoff := 10 * time.Millisecond
	attempt := 0

	for {
		acquired, err := tryLock(f, mode)
		if err != nil {
			f.Close()
			return nil, crerr.IOFailuref(err, "acquiring lock on %s", path)
		}
		if acquired {
			return &Lock{file: f, mode: mode}, nil
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			f.Close()
			return nil, crerr.LockTimeoutf("failed to acquire %v lock on %s after %s", mode, path, timeout)
		}

		logger.Debug("lock contended, backing off",
			zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("elapsed", elapsed))

		sleep := backoff
		if sleep > maxBackoff {
			sleep = maxBackoff
		}
		time.Sleep(sleep)
		backoff *= 2
		attempt++
	}
}

// Release releases the lock and closes the underlying file handle.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return crerr.IOFailuref(unlockErr, "releasing lock")
	}
	if closeErr != nil {
		return crerr.IOFailuref(closeErr, "closing lock file")
	}
	return nil
}

func (m Mode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

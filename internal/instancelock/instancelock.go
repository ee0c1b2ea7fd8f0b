// Package instancelock provides an advisory single-instance lock so two
// luffybot processes never supervise the same scripts directory at once.
package instancelock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrAlreadyLocked indicates another process already holds the lock.
var ErrAlreadyLocked = errors.New("instancelock: already held by another process")

// Lock is a held advisory file lock. Call Release (or close the process)
// to give it up; an abnormal process exit also releases it, since flock(2)
// locks are tied to the file descriptor's owning process.
type Lock struct {
	f *os.File
}

// Acquire takes an exclusive, non-blocking flock(2) lock on path, creating
// the file if needed. It returns ErrAlreadyLocked if another process
// already holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("instancelock: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("instancelock: flock %s: %w", path, err)
	}

	_ = f.Truncate(0)
	_, _ = f.WriteString(fmt.Sprintf("%d\n", os.Getpid()))

	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}

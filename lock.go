package vecdb

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// dirLock is an advisory, process-exclusive lock on a database directory,
// held for the lifetime of an open [DB]. It guards against two processes
// opening the same directory concurrently, which would corrupt the log
// (neither os-level file locking nor vecdb's in-process mutex protects
// against a second process).
type dirLock struct {
	file *os.File
}

// acquireDirLock takes a non-blocking exclusive lock on dir/.lock,
// creating the lock file if necessary.
func acquireDirLock(dir string) (*dirLock, error) {
	path := filepath.Join(dir, ".lock")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("%w: %s", ErrBusy, dir)
	}

	return &dirLock{file: file}, nil
}

// release drops the lock and closes its file.
func (l *dirLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}

	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)

	return l.file.Close()
}

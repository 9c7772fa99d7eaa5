//go:build unix

package registry

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const lockSupported = true

// fileLock holds an exclusive flock for the lifetime of an open Registry.
// The kernel drops the lock if the process dies.
type fileLock struct {
	file *os.File
}

// acquireLock opens (or creates) path and blocks until it holds LOCK_EX.
func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &fileLock{file: f}, nil
}

// release unlocks and closes the file. Safe to call more than once.
func (l *fileLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}

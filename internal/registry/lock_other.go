//go:build !unix

package registry

const lockSupported = false

type fileLock struct{}

// acquireLock is a no-op where flock is not available.
func acquireLock(string) (*fileLock, error) {
	return &fileLock{}, nil
}

func (l *fileLock) release() error { return nil }

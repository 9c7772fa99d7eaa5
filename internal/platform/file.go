package platform

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/renameio/v2/maybe"
)

// WriteFileAtomic replaces path with data through a synced temporary file
// and a rename, so readers see either the old or the new content. Windows
// has no atomic replace and gets a plain write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := maybe.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, preserving the permission bits of src.
// An existing dst is truncated.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return chmod(dst, info.Mode().Perm())
}

// chmod reapplies mode after the umask trimmed it. Windows has no permission
// bits to restore.
func chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// Package platform provides the filesystem operations used when writing into
// the managed extension directory: atomic file replacement and
// permission-preserving copies. On Windows the mode fixup is skipped.
package platform

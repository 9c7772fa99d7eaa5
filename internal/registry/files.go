package registry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/extdeb/extdeb/internal/platform"
)

const (
	stagePrefix = ".stage-"
	asidePrefix = ".prev-"
)

// stageArtifacts copies each source file into dir under a temporary name.
// On error every staged file is removed again.
func stageArtifacts(dir string, sources []string) ([]string, error) {
	staged := make([]string, 0, len(sources))
	for _, src := range sources {
		dst := filepath.Join(dir, stagePrefix+filepath.Base(src))
		if err := platform.CopyFile(src, dst); err != nil {
			discard(staged)
			return nil, &IOError{Op: "copy", Path: src, Err: err}
		}
		staged = append(staged, dst)
	}
	return staged, nil
}

// fileTxn tracks the artifact files one mutation moves, so they can be put
// back if the document cannot be persisted. Previous artifacts are renamed
// aside rather than deleted until finish.
type fileTxn struct {
	dir       string
	aside     map[string]string // final path -> aside path
	installed []string
}

func newFileTxn(dir string) *fileTxn {
	return &fileTxn{dir: dir, aside: make(map[string]string)}
}

// setAside moves recorded artifact files out of the way. Files that are
// already gone are skipped so an interrupted uninstall can be repeated.
func (t *fileTxn) setAside(files []string) error {
	for _, f := range files {
		path := filepath.Join(t.dir, f)
		aside := filepath.Join(t.dir, asidePrefix+f)
		err := os.Rename(path, aside)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return &IOError{Op: "rename", Path: path, Err: err}
		}
		t.aside[path] = aside
	}
	return nil
}

// install renames staged files to their final names.
func (t *fileTxn) install(staged []string) error {
	for i, s := range staged {
		final := filepath.Join(t.dir, filepath.Base(s)[len(stagePrefix):])
		if err := os.Rename(s, final); err != nil {
			discard(staged[i:])
			return &IOError{Op: "rename", Path: final, Err: err}
		}
		t.installed = append(t.installed, final)
	}
	return nil
}

// rollback removes newly installed files and restores the previous ones.
func (t *fileTxn) rollback() {
	discard(t.installed)
	for path, aside := range t.aside {
		_ = os.Rename(aside, path)
	}
}

// finish drops the previous artifacts once the document is on disk.
func (t *fileTxn) finish() {
	for _, aside := range t.aside {
		_ = os.Remove(aside)
	}
}

func discard(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

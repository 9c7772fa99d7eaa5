package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/extdeb/extdeb/internal/logging"
	"github.com/extdeb/extdeb/internal/platform"
	"github.com/extdeb/extdeb/internal/toposort"
	"github.com/sirupsen/logrus"
)

// File names inside the managed extension directory.
const (
	DocumentFile       = "packages.json"
	LockFile           = ".extdeb.lock"
	ActivationManifest = "extensions.ini"
)

// Registry is an open, locked view of packages.json.
type Registry struct {
	dir  string
	path string
	doc  *document
	lock *fileLock
	log  logrus.FieldLogger
}

// Option configures Open.
type Option func(*Registry)

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = l }
}

// ErrUnsafePath is returned for an extension directory or artifact name
// that extensions.ini cannot carry as a plain value: PHP reads ; and # as a
// comment, and the ini writer would quote them in a way PHP does not parse.
var ErrUnsafePath = errors.New("path cannot be written to extensions.ini")

// manifestSafe reports whether s can appear unquoted in extensions.ini.
func manifestSafe(s string) bool {
	return !strings.ContainsAny(s, ";#\"`\n\r") && strings.TrimSpace(s) == s
}

// Open creates dir if needed, takes the registry lock and loads
// packages.json. A missing document yields an empty registry; a malformed
// one is a *LoadError.
func Open(dir string, opts ...Option) (*Registry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving extension directory %s: %w", dir, err)
	}
	if !manifestSafe(abs) {
		return nil, fmt.Errorf("extension directory %q: %w", abs, ErrUnsafePath)
	}

	r := &Registry{
		dir:  abs,
		path: filepath.Join(abs, DocumentFile),
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = logging.Discard()
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating extension directory %s: %w", abs, err)
	}

	lock, err := acquireLock(filepath.Join(abs, LockFile))
	if err != nil {
		return nil, err
	}
	if !lockSupported {
		r.log.Debug("registry lock not supported on this platform")
	}
	r.lock = lock

	doc, err := load(r.path)
	if err != nil {
		_ = lock.release()
		return nil, err
	}
	r.doc = doc

	r.log.WithFields(logrus.Fields{
		"path":      r.path,
		"installed": len(doc.Artifacts),
	}).Debug("registry loaded")
	return r, nil
}

func load(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	doc, err := decodeDocument(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return doc, nil
}

// Close releases the registry lock.
func (r *Registry) Close() error {
	return r.lock.release()
}

// Dir returns the absolute managed extension directory.
func (r *Registry) Dir() string { return r.dir }

// Path returns the absolute path of packages.json.
func (r *Registry) Path() string { return r.path }

// Installed returns the names of packages with an artifact record, sorted.
func (r *Registry) Installed() []string {
	names := make([]string, 0, len(r.doc.Artifacts))
	for name := range r.doc.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsInstalled reports whether name has an artifact record.
func (r *Registry) IsInstalled(name string) bool {
	_, ok := r.doc.Artifacts[name]
	return ok
}

// Artifacts returns the recorded artifact file names of name, in order.
func (r *Registry) Artifacts(name string) []string {
	return slices.Clone(r.doc.Artifacts[name])
}

// Dependencies returns the recorded dependency list of name.
func (r *Registry) Dependencies(name string) []string {
	return slices.Clone(r.doc.Dependencies[name])
}

// Version returns the recorded version of name, or "".
func (r *Registry) Version(name string) string {
	return r.doc.Versions[name]
}

// Owners returns the packages that currently claim distro, sorted.
func (r *Registry) Owners(distro string) []string {
	return slices.Clone(r.doc.DistroOwners[distro])
}

// DistroOwners returns a copy of the full ownership table.
func (r *Registry) DistroOwners() map[string][]string {
	out := make(map[string][]string, len(r.doc.DistroOwners))
	for k, v := range r.doc.DistroOwners {
		out[k] = slices.Clone(v)
	}
	return out
}

// DistroPackages returns the distro packages name currently owns, sorted.
func (r *Registry) DistroPackages(name string) []string {
	var out []string
	for distro, owners := range r.doc.DistroOwners {
		if _, found := slices.BinarySearch(owners, name); found {
			out = append(out, distro)
		}
	}
	sort.Strings(out)
	return out
}

// Dependents returns the installed packages that depend on name, sorted.
func (r *Registry) Dependents(name string) []string {
	return r.doc.dependents(name)
}

// Graph returns every dependency edge set as sort input, ordered by package
// name.
func (r *Registry) Graph() []toposort.Node {
	return toposort.FromMap(r.doc.Dependencies)
}

// persist writes doc and, only on success, makes it the live document.
func (r *Registry) persist(doc *document) error {
	data, err := doc.encode()
	if err != nil {
		return &IOError{Op: "encode", Path: r.path, Err: err}
	}
	if err := platform.WriteFileAtomic(r.path, data, 0644); err != nil {
		return &IOError{Op: "write", Path: r.path, Err: err}
	}
	r.doc = doc
	return nil
}

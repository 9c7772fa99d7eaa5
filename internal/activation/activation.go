// Package activation turns the registry into extensions.ini, the
// dependency-ordered list of artifacts the runtime loads at startup.
package activation

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/extdeb/extdeb/internal/logging"
	"github.com/extdeb/extdeb/internal/platform"
	"github.com/extdeb/extdeb/internal/registry"
	"github.com/extdeb/extdeb/internal/toposort"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// FileName is the manifest written into the managed extension directory.
const FileName = registry.ActivationManifest

const header = "Generated by extdeb from packages.json. Changes are overwritten; run 'extdeb manifest' to regenerate."

// Source is the read-only registry view the generator needs.
type Source interface {
	Dir() string
	Installed() []string
	Graph() []toposort.Node
	Artifacts(name string) []string
}

// Generator derives and writes the activation manifest.
type Generator struct {
	src      Source
	flavor   Flavor
	fileName string
	log      logrus.FieldLogger
}

// Option configures a Generator.
type Option func(*Generator)

// WithFlavor selects the directive syntax. Defaults to PHP.
func WithFlavor(f Flavor) Option {
	return func(g *Generator) { g.flavor = f }
}

// WithFileName overrides the manifest file name inside the source directory.
func WithFileName(name string) Option {
	return func(g *Generator) { g.fileName = name }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = l }
}

// New returns a generator reading from src.
func New(src Source, opts ...Option) *Generator {
	g := &Generator{
		src:      src,
		flavor:   FlavorPHP,
		fileName: FileName,
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = logging.Discard()
	}
	return g
}

// Path returns where Write puts the manifest.
func (g *Generator) Path() string {
	return filepath.Join(g.src.Dir(), g.fileName)
}

// Generate returns the absolute artifact paths in load order. Packages are
// ordered so each follows its dependencies; within a package, artifacts keep
// their recorded order. Packages without artifacts (dependency targets that
// are not installed) contribute nothing. A cycle yields a
// *toposort.CycleError and no paths.
func (g *Generator) Generate() ([]string, error) {
	nodes := g.src.Graph()

	// Installed packages without a dependency entry (hand-edited documents)
	// still load, after everything else.
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.Name] = true
	}
	for _, name := range g.src.Installed() {
		if !known[name] {
			nodes = append(nodes, toposort.Node{Name: name})
		}
	}

	order, err := toposort.Sort(nodes)
	if err != nil {
		return nil, fmt.Errorf("ordering extensions: %w", err)
	}

	dir := g.src.Dir()
	var paths []string
	for _, name := range order {
		files := g.src.Artifacts(name)
		if len(files) == 0 {
			g.log.WithField("package", name).Debug("no artifacts, skipping")
			continue
		}
		for _, f := range files {
			paths = append(paths, filepath.Join(dir, f))
		}
	}
	return paths, nil
}

// Render formats paths as an ini document for the generator's flavor.
func (g *Generator) Render(paths []string) ([]byte, error) {
	cfg := ini.Empty(ini.LoadOptions{AllowShadows: true})
	sec := cfg.Section("")
	sec.Comment = header

	key := g.flavor.Key()
	for _, p := range paths {
		if _, err := sec.NewKey(key, p); err != nil {
			return nil, fmt.Errorf("adding %s: %w", p, err)
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", g.fileName, err)
	}
	return buf.Bytes(), nil
}

// Write generates the manifest and atomically replaces the file on disk.
// On any error, including a dependency cycle, the previous file is left
// untouched.
func (g *Generator) Write() ([]string, error) {
	paths, err := g.Generate()
	if err != nil {
		return nil, err
	}

	data, err := g.Render(paths)
	if err != nil {
		return nil, err
	}

	path := g.Path()
	if err := platform.WriteFileAtomic(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing activation manifest: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"path":      path,
		"artifacts": len(paths),
	}).Debug("activation manifest written")
	return paths, nil
}

// Read parses an existing manifest and returns its artifact paths in file
// order. A missing directive key yields no paths.
func Read(path string, flavor Flavor) ([]string, error) {
	cfg, err := ini.ShadowLoad(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	sec := cfg.Section("")
	if !sec.HasKey(flavor.Key()) {
		return nil, nil
	}
	return sec.Key(flavor.Key()).ValueWithShadows(), nil
}

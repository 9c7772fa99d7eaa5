package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// reservedNames cannot be used as artifact names because the registry
// itself owns them.
var reservedNames = map[string]bool{
	DocumentFile:       true,
	LockFile:           true,
	ActivationManifest: true,
}

// AddExtension registers pkg with the artifacts produced by its build and
// returns the distro packages no installed extension claims any more.
//
// If pkg is already installed its previous artifact files are replaced; they
// are only deleted once the document is persisted, and a failed persist puts
// them back. The new artifacts are copied into the managed directory in the given
// order, the dependency list is recorded, ownership is reassigned and the
// document is persisted. Validation happens before anything is touched, and
// the in-memory registry only changes once the document is on disk.
func (r *Registry) AddExtension(pkg Package, artifactPaths []string) ([]string, error) {
	if err := r.validate(pkg, artifactPaths); err != nil {
		return nil, err
	}
	log := r.log.WithField("package", pkg.Name)

	staged, err := stageArtifacts(r.dir, artifactPaths)
	if err != nil {
		return nil, err
	}

	txn := newFileTxn(r.dir)
	doc := r.doc.clone()
	if old, ok := doc.Artifacts[pkg.Name]; ok {
		log.WithField("files", old).Debug("setting previous artifacts aside")
		if err := txn.setAside(old); err != nil {
			discard(staged)
			txn.rollback()
			return nil, err
		}
		delete(doc.Artifacts, pkg.Name)
	}

	if err := txn.install(staged); err != nil {
		txn.rollback()
		return nil, err
	}

	files := make([]string, len(artifactPaths))
	for i, p := range artifactPaths {
		files[i] = filepath.Base(p)
	}
	doc.Artifacts[pkg.Name] = files
	doc.Dependencies[pkg.Name] = dedupe(pkg.Dependencies)
	if pkg.Version != "" {
		doc.Versions[pkg.Name] = pkg.Version
	} else {
		delete(doc.Versions, pkg.Name)
	}

	unneeded := doc.reassignOwnership(pkg.Name, dedupe(pkg.DistroPackages))

	if err := r.persist(doc); err != nil {
		txn.rollback()
		return nil, err
	}
	txn.finish()

	log.WithFields(logrus.Fields{
		"artifacts": files,
		"unneeded":  unneeded,
	}).Debug("extension registered")
	return unneeded, nil
}

// RemoveOption configures RemoveExtension.
type RemoveOption func(*removeConfig)

type removeConfig struct {
	force bool
}

// Force allows removing a package that others still depend on. Their edges
// are kept and resolve to a package without artifacts.
func Force() RemoveOption {
	return func(c *removeConfig) { c.force = true }
}

// RemoveExtension deletes name's artifacts, drops it from every distro
// owner set, removes its dependency entry and persists the document. It
// returns the distro packages that became unneeded.
func (r *Registry) RemoveExtension(name string, opts ...RemoveOption) ([]string, error) {
	var cfg removeConfig
	for _, o := range opts {
		o(&cfg)
	}

	_, hasArtifacts := r.doc.Artifacts[name]
	_, hasDeps := r.doc.Dependencies[name]
	if !hasArtifacts && !hasDeps {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}

	log := r.log.WithField("package", name)

	if dependents := r.doc.dependents(name); len(dependents) > 0 {
		if !cfg.force {
			return nil, &DependentsError{Name: name, Dependents: dependents}
		}
		log.WithField("dependents", dependents).Warn("removing a package other extensions depend on")
	}

	txn := newFileTxn(r.dir)
	if err := txn.setAside(r.doc.Artifacts[name]); err != nil {
		txn.rollback()
		return nil, err
	}

	doc := r.doc.clone()
	delete(doc.Artifacts, name)
	unneeded := doc.reassignOwnership(name, nil)
	delete(doc.Dependencies, name)
	delete(doc.Versions, name)

	if err := r.persist(doc); err != nil {
		txn.rollback()
		return nil, err
	}
	txn.finish()

	log.WithField("unneeded", unneeded).Debug("extension removed")
	return unneeded, nil
}

func (r *Registry) validate(pkg Package, artifactPaths []string) error {
	if pkg.Name == "" {
		return &InvalidPackageError{Reason: "empty package name"}
	}
	if len(artifactPaths) == 0 {
		return &InvalidPackageError{Name: pkg.Name, Reason: "build produced no artifacts"}
	}

	seen := make(map[string]bool, len(artifactPaths))
	for _, p := range artifactPaths {
		info, err := os.Stat(p)
		if err != nil {
			return &IOError{Op: "stat", Path: p, Err: err}
		}
		if !info.Mode().IsRegular() {
			return &InvalidPackageError{Name: pkg.Name, Reason: fmt.Sprintf("artifact %s is not a regular file", p)}
		}

		base := filepath.Base(p)
		if reservedNames[base] || strings.HasPrefix(base, stagePrefix) || strings.HasPrefix(base, asidePrefix) {
			return &InvalidPackageError{Name: pkg.Name, Reason: fmt.Sprintf("artifact name %s is reserved", base)}
		}
		if !manifestSafe(base) {
			return &InvalidPackageError{Name: pkg.Name, Reason: fmt.Sprintf("artifact name %q: %v", base, ErrUnsafePath)}
		}
		if seen[base] {
			return &InvalidPackageError{Name: pkg.Name, Reason: fmt.Sprintf("duplicate artifact name %s", base)}
		}
		seen[base] = true

		if owner, ok := r.doc.artifactOwner(base); ok && owner != pkg.Name {
			return &InvalidPackageError{Name: pkg.Name, Reason: fmt.Sprintf("artifact %s already belongs to %s", base, owner)}
		}
	}

	for _, d := range pkg.DistroPackages {
		if d == "" {
			return &InvalidPackageError{Name: pkg.Name, Reason: "empty distro package name"}
		}
	}
	for _, d := range pkg.Dependencies {
		if d == "" {
			return &InvalidPackageError{Name: pkg.Name, Reason: "empty dependency name"}
		}
		if d == pkg.Name {
			return &InvalidPackageError{Name: pkg.Name, Reason: "package depends on itself"}
		}
	}
	return nil
}

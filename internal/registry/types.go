package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Package describes one extension as it is registered.
type Package struct {
	Name           string   // package identifier, e.g. "vendor/redis"
	Version        string   // manifest version, informational
	Dependencies   []string // extensions this one is loaded after
	DistroPackages []string // apt packages this extension requires
}

// ErrNotInstalled is returned when an operation names a package the registry
// has no record of.
var ErrNotInstalled = errors.New("package is not installed")

// LoadError indicates packages.json exists but cannot be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading registry %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IOError wraps a failed filesystem operation on artifacts or on the
// registry document.
type IOError struct {
	Op   string // "copy", "remove", "write", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// DependentsError is returned when removing a package that other installed
// packages still depend on.
type DependentsError struct {
	Name       string
	Dependents []string
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s is required by %s", e.Name, strings.Join(e.Dependents, ", "))
}

// InvalidPackageError reports a Package or artifact list rejected before any
// state was changed.
type InvalidPackageError struct {
	Name   string
	Reason string
}

func (e *InvalidPackageError) Error() string {
	if e.Name == "" {
		return "invalid package: " + e.Reason
	}
	return fmt.Sprintf("invalid package %s: %s", e.Name, e.Reason)
}

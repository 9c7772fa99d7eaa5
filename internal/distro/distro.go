// Package distro identifies the running Debian-family system and picks the
// distro packages an extension needs on it.
package distro

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/extdeb/extdeb/internal/command"
	"github.com/extdeb/extdeb/internal/manifest"
)

// ErrUnsupported is returned by Detect on systems without lsb_release,
// apt-get and dpkg.
var ErrUnsupported = errors.New("not a Debian-based system")

// Info names a distro and release as lsb_release reports them,
// e.g. {"Ubuntu", "22.04"}.
type Info struct {
	ID      string
	Release string
}

func (i Info) String() string {
	if i.Release == "" {
		return i.ID
	}
	return i.ID + " " + i.Release
}

// lookPath is replaced in tests.
var lookPath = command.Available

// Detect queries lsb_release for the distro ID and release and checks that
// apt-get and dpkg are present.
func Detect(ctx context.Context, r command.Runner) (Info, error) {
	for _, tool := range []string{"lsb_release", "apt-get", "dpkg"} {
		if !lookPath(tool) {
			return Info{}, fmt.Errorf("%w: %s not found", ErrUnsupported, tool)
		}
	}

	id, err := lsbRelease(ctx, r, "-is")
	if err != nil {
		return Info{}, err
	}
	release, err := lsbRelease(ctx, r, "-rs")
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Release: release}, nil
}

func lsbRelease(ctx context.Context, r command.Runner, flag string) (string, error) {
	res, err := r.Run(ctx, command.Config{Command: "lsb_release", Args: []string{flag}})
	if err != nil {
		return "", fmt.Errorf("detecting distro: %w", err)
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", fmt.Errorf("%w: lsb_release %s printed nothing", ErrUnsupported, flag)
	}
	return out, nil
}

// ConfigurationError reports an extension whose apt-get block has no entry
// for the running system.
type ConfigurationError struct {
	Package string
	System  Info
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: apt-get defines no packages for %s and no default", e.Package, e.System)
}

// Resolve picks the distro package list for info. A matching distro entry
// is consulted first (exact release, then the distro's default); the
// top-level default applies only when the distro has no entry at all. An
// empty list counts as absent, so a system that resolves to no packages is
// a ConfigurationError.
func Resolve(m *manifest.ExtensionManifest, info Info) ([]string, error) {
	apt := m.AptGet
	if d, ok := apt.Distros[info.ID]; ok {
		if pkgs := d.Releases[info.Release]; len(pkgs) > 0 {
			return dedupe(pkgs), nil
		}
		if len(d.Default) > 0 {
			return dedupe(d.Default), nil
		}
		return nil, &ConfigurationError{Package: m.Name, System: info}
	}
	if len(apt.Default) > 0 {
		return dedupe(apt.Default), nil
	}
	return nil, &ConfigurationError{Package: m.Name, System: info}
}

func dedupe(pkgs []string) []string {
	out := make([]string, 0, len(pkgs))
	seen := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

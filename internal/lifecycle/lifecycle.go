package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/extdeb/extdeb/internal/activation"
	"github.com/extdeb/extdeb/internal/distro"
	"github.com/extdeb/extdeb/internal/logging"
	"github.com/extdeb/extdeb/internal/manifest"
	"github.com/extdeb/extdeb/internal/registry"
	"github.com/extdeb/extdeb/internal/toposort"
	"github.com/sirupsen/logrus"
	"mvdan.cc/sh/v3/shell"
)

// ErrAlreadyInstalled is returned by Install for a package that is already
// in the registry.
var ErrAlreadyInstalled = errors.New("already installed")

// Report summarizes a completed operation.
type Report struct {
	Name            string
	Version         string
	PreviousVersion string
	DistroPackages  []string
	Artifacts       []string
	Unneeded        []string // distro packages no extension claims any more
	Removed         []string // the subset of Unneeded actually removed
	LoadOrder       []string // activation manifest contents after the operation
}

// Orchestrator runs extension lifecycle operations against one registry.
type Orchestrator struct {
	reg    *registry.Registry
	gen    *activation.Generator
	c      Collaborators
	system distro.Info

	buildOptions func(name string) string
	timeout      time.Duration
	assumeYes    bool
	log          logrus.FieldLogger

	askedUpdate bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystem sets the distro and release used to resolve apt-get blocks.
func WithSystem(info distro.Info) Option {
	return func(o *Orchestrator) { o.system = info }
}

// WithBuildOptions supplies the extra configure or cmake arguments for a
// package as one shell-quoted string.
func WithBuildOptions(fn func(name string) string) Option {
	return func(o *Orchestrator) { o.buildOptions = fn }
}

// WithTimeout bounds each collaborator call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithAssumeYes answers yes to every question.
func WithAssumeYes(yes bool) Option {
	return func(o *Orchestrator) { o.assumeYes = yes }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New returns an Orchestrator.
func New(reg *registry.Registry, gen *activation.Generator, c Collaborators, opts ...Option) *Orchestrator {
	o := &Orchestrator{reg: reg, gen: gen, c: c}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logging.Discard()
	}
	if o.buildOptions == nil {
		o.buildOptions = func(string) string { return "" }
	}
	return o
}

// Install builds and registers the extension in dir. The package must not
// already be installed.
func (o *Orchestrator) Install(ctx context.Context, dir string) (*Report, error) {
	return o.build(ctx, dir, false)
}

// Update rebuilds an installed extension from dir and replaces its
// artifacts and declarations.
func (o *Orchestrator) Update(ctx context.Context, dir string) (*Report, error) {
	return o.build(ctx, dir, true)
}

func (o *Orchestrator) build(ctx context.Context, dir string, update bool) (*Report, error) {
	m, err := manifest.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	log := o.log.WithField("package", m.Name)

	installed := o.reg.IsInstalled(m.Name)
	switch {
	case update && !installed:
		return nil, fmt.Errorf("%s: %w", m.Name, registry.ErrNotInstalled)
	case !update && installed:
		return nil, fmt.Errorf("%s: %w (use update)", m.Name, ErrAlreadyInstalled)
	}

	pkgs, err := distro.Resolve(m, o.system)
	if err != nil {
		return nil, err
	}
	if err := m.CheckRequires(func(name string) (string, bool) {
		return o.reg.Version(name), o.reg.IsInstalled(name)
	}); err != nil {
		return nil, err
	}
	deps := m.Dependencies()
	if err := o.checkAcyclic(m.Name, deps); err != nil {
		return nil, err
	}
	options, err := shell.Fields(o.buildOptions(m.Name), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing build options: %w", m.Name, err)
	}

	report := &Report{
		Name:           m.Name,
		Version:        m.Version,
		DistroPackages: pkgs,
	}
	if update {
		report.PreviousVersion = o.reg.Version(m.Name)
		if err := o.call(ctx, func(ctx context.Context) error { return o.c.Compiler.Clean(ctx, dir) }); err != nil {
			log.WithError(err).Warn("make clean failed")
		}
	} else if err := o.maybeUpdateIndex(ctx); err != nil {
		return nil, err
	}

	log.WithField("distro_packages", pkgs).Info("installing distro packages")
	if err := o.call(ctx, func(ctx context.Context) error {
		return o.c.Packages.InstallDistroPackages(ctx, pkgs)
	}); err != nil {
		return nil, err
	}

	log.Info("compiling")
	var artifacts []string
	if err := o.call(ctx, func(ctx context.Context) error {
		res, err := o.c.Compiler.Build(ctx, dir, options)
		if err != nil {
			return err
		}
		artifacts = res.Artifacts
		return nil
	}); err != nil {
		return nil, err
	}

	unneeded, err := o.reg.AddExtension(registry.Package{
		Name:           m.Name,
		Version:        m.Version,
		Dependencies:   deps,
		DistroPackages: pkgs,
	}, artifacts)
	if err != nil {
		return nil, err
	}
	report.Artifacts = o.reg.Artifacts(m.Name)
	report.Unneeded = unneeded

	if err := o.finish(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// Uninstall removes name from the registry. A package other installed
// packages depend on is refused unless force is set.
func (o *Orchestrator) Uninstall(ctx context.Context, name string, force bool) (*Report, error) {
	report := &Report{
		Name:           name,
		Version:        o.reg.Version(name),
		DistroPackages: o.reg.DistroPackages(name),
		Artifacts:      o.reg.Artifacts(name),
	}

	var opts []registry.RemoveOption
	if force {
		opts = append(opts, registry.Force())
	}
	unneeded, err := o.reg.RemoveExtension(name, opts...)
	if err != nil {
		return nil, err
	}
	report.Unneeded = unneeded

	if err := o.finish(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// finish regenerates the activation manifest and offers to remove distro
// packages that lost their last owner.
func (o *Orchestrator) finish(ctx context.Context, report *Report) error {
	order, err := o.gen.Write()
	if err != nil {
		return fmt.Errorf("regenerating activation manifest: %w", err)
	}
	report.LoadOrder = order

	removed, err := o.removeUnneeded(ctx, report.Unneeded)
	report.Removed = removed
	return err
}

// checkAcyclic sorts the registry graph as it would look with name's new
// dependency list, so a cycle is refused before anything is built.
func (o *Orchestrator) checkAcyclic(name string, deps []string) error {
	nodes := o.reg.Graph()
	replaced := false
	for i := range nodes {
		if nodes[i].Name == name {
			nodes[i].Deps = deps
			replaced = true
		}
	}
	if !replaced {
		nodes = append(nodes, toposort.Node{Name: name, Deps: deps})
	}
	if _, err := toposort.Sort(nodes); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// maybeUpdateIndex asks once per Orchestrator whether to refresh the apt
// index before the first install.
func (o *Orchestrator) maybeUpdateIndex(ctx context.Context) error {
	if o.askedUpdate {
		return nil
	}
	o.askedUpdate = true

	yes := o.assumeYes
	if !yes {
		var err error
		yes, err = o.c.Prompter.Confirm("Would you like to run sudo apt-get update?", false)
		if err != nil {
			return err
		}
	}
	if !yes {
		return nil
	}
	return o.call(ctx, o.c.Packages.Update)
}

const (
	removeAll = iota
	removeNone
	removeEach
)

// removeUnneeded offers unneeded distro packages for removal and returns
// those actually removed. Nothing is removed in a non-interactive session
// unless assume-yes is set.
func (o *Orchestrator) removeUnneeded(ctx context.Context, unneeded []string) ([]string, error) {
	if len(unneeded) == 0 {
		return nil, nil
	}

	var chosen []string
	switch {
	case o.assumeYes:
		chosen = unneeded
	case !o.c.Prompter.Interactive():
		o.log.WithField("distro_packages", unneeded).Info("distro packages no longer needed")
		return nil, nil
	default:
		q := fmt.Sprintf("The following distro packages can be removed: %s. Remove them?", strings.Join(unneeded, " "))
		choice, err := o.c.Prompter.Choose(q, []string{"yes", "no", "interactive"}, removeNone)
		if err != nil {
			return nil, err
		}
		switch choice {
		case removeAll:
			chosen = unneeded
		case removeEach:
			for _, pkg := range unneeded {
				ok, err := o.c.Prompter.Confirm(fmt.Sprintf("Would you like to remove %s?", pkg), false)
				if err != nil {
					return nil, err
				}
				if ok {
					chosen = append(chosen, pkg)
				}
			}
		}
	}

	if len(chosen) == 0 {
		return nil, nil
	}
	if err := o.call(ctx, func(ctx context.Context) error {
		return o.c.Packages.RemoveDistroPackages(ctx, chosen)
	}); err != nil {
		return nil, fmt.Errorf("removing unneeded distro packages: %w", err)
	}
	return chosen, nil
}

// call runs fn under the configured timeout.
func (o *Orchestrator) call(ctx context.Context, fn func(context.Context) error) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return fn(ctx)
}

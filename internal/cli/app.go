package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/extdeb/extdeb/internal/activation"
	"github.com/extdeb/extdeb/internal/apt"
	"github.com/extdeb/extdeb/internal/builder"
	"github.com/extdeb/extdeb/internal/command"
	"github.com/extdeb/extdeb/internal/config"
	"github.com/extdeb/extdeb/internal/distro"
	"github.com/extdeb/extdeb/internal/lifecycle"
	"github.com/extdeb/extdeb/internal/logging"
	"github.com/extdeb/extdeb/internal/prompt"
	"github.com/extdeb/extdeb/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds the per-invocation state shared by commands that touch the
// registry.
type app struct {
	log    *logrus.Logger
	flavor activation.Flavor
	reg    *registry.Registry
	gen    *activation.Generator
}

// openApp opens the registry under the configured extension directory. The
// caller must Close it.
func openApp(cmd *cobra.Command) (*app, error) {
	log := logging.New(cmd.ErrOrStderr(), verbose)

	flavor, err := activation.ParseFlavor(config.Flavor())
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(config.ExtDir(), registry.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return &app{
		log:    log,
		flavor: flavor,
		reg:    reg,
		gen:    activation.New(reg, activation.WithFlavor(flavor), activation.WithLogger(log)),
	}, nil
}

func (a *app) Close() error {
	return a.reg.Close()
}

// orchestrator wires the real collaborators: apt-get, the phpize/hphpize
// toolchain and a terminal prompter. Distro detection only runs when the
// operation builds something.
func (a *app) orchestrator(ctx context.Context, cmd *cobra.Command, builds bool) (*lifecycle.Orchestrator, error) {
	runner := command.NewLocalRunner(a.log)

	var system distro.Info
	if builds {
		var err error
		if system, err = a.system(ctx, runner); err != nil {
			return nil, err
		}
		a.log.WithField("system", system.String()).Debug("resolved distro")
	}

	assumeYes := config.AssumeYes()
	builderOpts := []builder.Option{builder.WithLogger(a.log)}
	if verbose {
		builderOpts = append(builderOpts, builder.WithOutput(cmd.ErrOrStderr()))
	}

	c := lifecycle.Collaborators{
		Packages: apt.New(runner,
			apt.WithLogger(a.log),
			apt.WithAssumeYes(assumeYes),
			apt.WithTerminal(os.Stdin, cmd.ErrOrStderr(), cmd.ErrOrStderr()),
		),
		Compiler: builder.New(runner, a.flavor, builderOpts...),
		Prompter: prompt.NewTerminal(os.Stdin, cmd.ErrOrStderr()),
	}
	return lifecycle.New(a.reg, a.gen, c,
		lifecycle.WithSystem(system),
		lifecycle.WithBuildOptions(config.ExtOptions),
		lifecycle.WithTimeout(config.BuildTimeout()),
		lifecycle.WithAssumeYes(assumeYes),
		lifecycle.WithLogger(a.log),
	), nil
}

// system returns the configured distro override, or detects it.
func (a *app) system(ctx context.Context, r command.Runner) (distro.Info, error) {
	id, release := config.DistroOverride()
	if id != "" {
		return distro.Info{ID: id, Release: release}, nil
	}
	info, err := distro.Detect(ctx, r)
	if err != nil {
		return distro.Info{}, fmt.Errorf("%w (set %s to override)", err, config.KeyDistro)
	}
	return info, nil
}

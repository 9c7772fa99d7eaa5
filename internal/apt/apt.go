// Package apt installs and removes distro packages with apt-get.
package apt

import (
	"context"
	"fmt"
	"io"

	"github.com/extdeb/extdeb/internal/command"
	"github.com/extdeb/extdeb/internal/logging"
	"github.com/sirupsen/logrus"
)

// Manager drives apt-get through a command.Runner. All operations run
// under sudo.
type Manager struct {
	runner    command.Runner
	log       logrus.FieldLogger
	assumeYes bool
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithAssumeYes passes -y so apt-get never asks for confirmation.
func WithAssumeYes(yes bool) Option {
	return func(m *Manager) { m.assumeYes = yes }
}

// WithTerminal connects apt-get to the user's terminal so its own prompts
// and progress are visible.
func WithTerminal(in io.Reader, out, errOut io.Writer) Option {
	return func(m *Manager) {
		m.stdin, m.stdout, m.stderr = in, out, errOut
	}
}

// New returns a Manager using r.
func New(r command.Runner, opts ...Option) *Manager {
	m := &Manager{runner: r}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = logging.Discard()
	}
	return m
}

// Update refreshes the package index.
func (m *Manager) Update(ctx context.Context) error {
	return m.run(ctx, "update", nil)
}

// InstallDistroPackages installs names. An empty list is a no-op.
func (m *Manager) InstallDistroPackages(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return m.run(ctx, "install", names)
}

// RemoveDistroPackages removes names. An empty list is a no-op.
func (m *Manager) RemoveDistroPackages(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return m.run(ctx, "remove", names)
}

func (m *Manager) run(ctx context.Context, verb string, names []string) error {
	args := []string{verb}
	var env []string
	if m.assumeYes && verb != "update" {
		args = append(args, "-y")
		env = []string{"DEBIAN_FRONTEND=noninteractive"}
	}
	args = append(args, names...)

	cfg := command.Config{
		Command: "apt-get",
		Args:    args,
		Sudo:    true,
		Env:     env,
		Stdin:   m.stdin,
		Stdout:  m.stdout,
		Stderr:  m.stderr,
	}
	m.log.WithField("command", cfg.String()).Info("running")

	if _, err := m.runner.Run(ctx, cfg); err != nil {
		return fmt.Errorf("apt-get %s: %w", verb, err)
	}
	return nil
}

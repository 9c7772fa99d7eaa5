// Package builder compiles an extension source tree with the phpize or
// hphpize toolchain and locates the shared objects it produced.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extdeb/extdeb/internal/activation"
	"github.com/extdeb/extdeb/internal/command"
	"github.com/extdeb/extdeb/internal/logging"
	"github.com/sirupsen/logrus"
)

// ErrNoArtifacts is wrapped in a BuildError when the build succeeds but
// leaves no .so files behind.
var ErrNoArtifacts = errors.New("build produced no shared objects")

// Result is a successful build.
type Result struct {
	Artifacts []string // absolute paths, sorted
	Output    string
}

// BuildError reports the step that failed and everything it printed.
type BuildError struct {
	Dir      string
	Step     string
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building %s: %s: %v", e.Dir, e.Step, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder runs the configure-and-make sequence for one flavor.
type Builder struct {
	runner command.Runner
	flavor activation.Flavor
	log    logrus.FieldLogger
	output io.Writer
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Builder) { b.log = l }
}

// WithOutput streams compiler output to w as it is produced.
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.output = w }
}

// New returns a Builder for flavor.
func New(r command.Runner, flavor activation.Flavor, opts ...Option) *Builder {
	b := &Builder{runner: r, flavor: flavor}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = logging.Discard()
	}
	return b
}

// steps returns the commands that build the tree. options go to configure
// (PHP) or cmake (HHVM).
func (b *Builder) steps(options []string) []command.Config {
	if b.flavor == activation.FlavorHHVM {
		cmake := append(append([]string{}, options...), ".")
		return []command.Config{
			{Command: "hphpize"},
			{Command: "cmake", Args: cmake},
			{Command: "make"},
		}
	}
	return []command.Config{
		{Command: "phpize"},
		{Command: "./configure", Args: options},
		{Command: "make"},
	}
}

// artifactGlob is where the toolchain leaves its shared objects.
func (b *Builder) artifactGlob(dir string) string {
	if b.flavor == activation.FlavorHHVM {
		return filepath.Join(dir, "*.so")
	}
	return filepath.Join(dir, "modules", "*.so")
}

// Build compiles dir. The first failing step aborts with a *BuildError.
func (b *Builder) Build(ctx context.Context, dir string, options []string) (*Result, error) {
	var output strings.Builder
	log := b.log.WithField("dir", dir)

	for _, step := range b.steps(options) {
		step.Dir = dir
		step.Stdout = b.output
		step.Stderr = b.output

		log.WithField("step", step.String()).Info("building")
		res, err := b.runner.Run(ctx, step)
		output.WriteString(res.Stdout)
		output.WriteString(res.Stderr)
		if err != nil {
			return nil, &BuildError{
				Dir:      dir,
				Step:     step.String(),
				ExitCode: res.ExitCode,
				Output:   output.String(),
				Err:      err,
			}
		}
	}

	artifacts, err := filepath.Glob(b.artifactGlob(dir))
	if err == nil && len(artifacts) == 0 {
		err = ErrNoArtifacts
	}
	if err != nil {
		return nil, &BuildError{Dir: dir, Step: "collect artifacts", Output: output.String(), Err: err}
	}

	log.WithField("artifacts", len(artifacts)).Debug("build finished")
	return &Result{Artifacts: artifacts, Output: output.String()}, nil
}

// Clean runs make clean in dir.
func (b *Builder) Clean(ctx context.Context, dir string) error {
	step := command.Config{Command: "make", Args: []string{"clean"}, Dir: dir}
	if _, err := b.runner.Run(ctx, step); err != nil {
		return fmt.Errorf("cleaning %s: %w", dir, err)
	}
	return nil
}

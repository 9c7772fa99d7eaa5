// Package command runs external programs on the local host. Every
// collaborator that shells out (apt-get, phpize, make, lsb_release) goes
// through a Runner so tests can substitute a mock.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/extdeb/extdeb/internal/logging"
	"github.com/sirupsen/logrus"
	"mvdan.cc/sh/v3/syntax"
)

// Config describes one command invocation.
type Config struct {
	Command string
	Args    []string
	Sudo    bool
	Env     []string // appended to the current environment
	Dir     string

	// Stdout and Stderr, when set, receive output as it is produced in
	// addition to the captured copy in Result.
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

// String renders the command line with shell quoting, including sudo.
func (c Config) String() string {
	words := c.argv()
	quoted := make([]string, len(words))
	for i, w := range words {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			q = w
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}

func (c Config) argv() []string {
	words := append([]string{c.Command}, c.Args...)
	if c.Sudo {
		words = append([]string{"sudo"}, words...)
	}
	return words
}

// Result encapsulates the results from a command execution.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cfg Config) (Result, error)
}

// LocalRunner runs commands with os/exec.
type LocalRunner struct {
	Log logrus.FieldLogger

	// skipSudo drops the sudo prefix, set when already running as root.
	skipSudo bool
}

// NewLocalRunner returns a runner for the current host.
func NewLocalRunner(log logrus.FieldLogger) *LocalRunner {
	if log == nil {
		log = logging.Discard()
	}
	return &LocalRunner{Log: log, skipSudo: os.Geteuid() == 0}
}

// Run executes cfg and waits for it. A non-zero exit yields an *ExitError
// alongside the populated Result. A cancelled or expired context yields the
// context's error.
func (r *LocalRunner) Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Sudo && r.skipSudo {
		cfg.Sudo = false
	}
	argv := cfg.argv()
	display := cfg.String()

	log := r.Log
	if log == nil {
		log = logging.Discard()
	}
	log.WithField("command", display).Debug("running")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stdin = cfg.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, cfg.Stdout)
	cmd.Stderr = tee(&stderr, cfg.Stderr)

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Command:  display,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return result, fmt.Errorf("%s: %w", display, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, &ExitError{Command: display, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	if err != nil {
		return result, fmt.Errorf("running %s: %w", display, err)
	}

	log.WithFields(logrus.Fields{
		"command":  display,
		"duration": result.Duration.Round(time.Millisecond),
	}).Debug("finished")
	return result, nil
}

// Available reports whether name resolves on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Package command runs external processes for the launcher. Every step the
// launcher performs (venv creation, pip, playwright, the scraper itself) goes
// through a Runner so tests can record invocations instead of spawning them.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Spec describes a single process invocation.
type Spec struct {
	// Name is the executable, resolved through PATH when it has no separator.
	Name string
	// Args are passed verbatim after Name.
	Args []string
	// Dir is the working directory; empty means the launcher's own.
	Dir string
	// Env replaces the process environment when non-nil.
	Env []string
	// Stdout and Stderr default to the launcher's own streams.
	Stdout io.Writer
	Stderr io.Writer
	// Stdin defaults to the launcher's stdin.
	Stdin io.Reader
}

// String renders the command line for logs.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return s.Name + " " + strings.Join(s.Args, " ")
}

// Runner executes a Spec and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, spec Spec) error
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// ExitCode maps err to a process exit status: 0 for nil, the child's status
// for an ExitError anywhere in the chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// ExecRunner runs processes with os/exec, inheriting stdio.
type ExecRunner struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	logger *zap.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithStdout overrides the default stdout for specs that do not set one.
func WithStdout(w io.Writer) Option {
	return func(r *ExecRunner) {
		r.stdout = w
	}
}

// WithStderr overrides the default stderr for specs that do not set one.
func WithStderr(w io.Writer) Option {
	return func(r *ExecRunner) {
		r.stderr = w
	}
}

// WithLogger logs each command line at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *ExecRunner) {
		r.logger = l
	}
}

// NewExecRunner creates a Runner that spawns real processes.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Run starts the process and waits for it. A non-zero exit is returned as
// *ExitError; failure to start is returned wrapped.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) error {
	if spec.Name == "" {
		return errors.New("command name is required")
	}
	r.logger.Debug("running command", zap.String("command", spec.String()), zap.String("dir", spec.Dir))
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.Stdout = firstWriter(spec.Stdout, r.stdout)
	cmd.Stderr = firstWriter(spec.Stderr, r.stderr)
	cmd.Stdin = spec.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = r.stdin
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal; report it the way a shell would.
			code = 128 + signalNumber(exitErr)
		}
		return &ExitError{Name: spec.Name, Code: code}
	}
	return fmt.Errorf("start %s: %w", spec.Name, err)
}

func firstWriter(preferred, fallback io.Writer) io.Writer {
	if preferred != nil {
		return preferred
	}
	return fallback
}

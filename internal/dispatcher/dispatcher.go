// Package dispatcher hands control to the delegated scraper program.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrapelauncher/internal/command"
	"github.com/JakeFAU/scrapelauncher/internal/environment"
	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

// ErrNotReady is returned when Dispatch is called without a ready environment.
var ErrNotReady = errors.New("environment is not ready")

// Config locates the delegated program.
type Config struct {
	// BaseDir is the absolute launcher directory and the program's working directory.
	BaseDir string
	// Program is the script to run, relative to BaseDir.
	Program string
}

// Dispatcher runs the delegated program inside a ready environment.
type Dispatcher struct {
	cfg     Config
	runner  command.Runner
	tracker *progress.Tracker
	logger  *zap.Logger
}

// New creates a Dispatcher. A nil tracker or logger discards output.
func New(cfg Config, runner command.Runner, tracker *progress.Tracker, logger *zap.Logger) *Dispatcher {
	if tracker == nil {
		tracker = progress.NewTracker(nil, uuid.Nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:     cfg,
		runner:  runner,
		tracker: tracker,
		logger:  logger,
	}
}

// ProgramPath returns the absolute path of the delegated program.
func (d *Dispatcher) ProgramPath() string {
	if filepath.IsAbs(d.cfg.Program) {
		return d.cfg.Program
	}
	return filepath.Join(d.cfg.BaseDir, d.cfg.Program)
}

// Dispatch runs the program with args forwarded verbatim and blocks until it
// exits. A non-zero exit is returned as *command.ExitError.
func (d *Dispatcher) Dispatch(ctx context.Context, h *environment.Handle, args []string) error {
	if h == nil {
		return ErrNotReady
	}
	spec := command.Spec{
		Name: h.Python(),
		Args: append([]string{d.ProgramPath()}, args...),
		Dir:  d.cfg.BaseDir,
		Env:  h.Env(),
	}
	d.logger.Info("dispatching", zap.String("program", d.ProgramPath()), zap.Strings("args", args))

	finish := d.tracker.Step(progress.StepDispatch)
	err := d.runner.Run(ctx, spec)
	finish(command.ExitCode(err), err)
	if err != nil {
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return fmt.Errorf("run %s: %w", d.ProgramPath(), err)
	}
	return nil
}

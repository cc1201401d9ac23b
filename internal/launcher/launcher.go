// Package launcher sequences one invocation: ensure the environment, hand
// control to the scraper, then tell the user where results went.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrapelauncher/internal/command"
	"github.com/JakeFAU/scrapelauncher/internal/environment"
	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

// Ensurer yields a ready environment.
type Ensurer interface {
	Ensure(ctx context.Context) (*environment.Handle, error)
}

// Dispatcher runs the delegated program.
type Dispatcher interface {
	Dispatch(ctx context.Context, h *environment.Handle, args []string) error
}

// Reporter prints where the delegated program leaves its output.
type Reporter struct {
	out       io.Writer
	outputDir string
}

// NewReporter writes to out, or stdout when out is nil.
func NewReporter(out io.Writer, outputDir string) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out, outputDir: outputDir}
}

// Message is the fixed completion line without its newline.
func (r *Reporter) Message() string {
	return fmt.Sprintf("Done! Results saved to %s/", r.outputDir)
}

// Report prints Message.
func (r *Reporter) Report() error {
	if _, err := fmt.Fprintln(r.out, r.Message()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Result is the outcome of one Run.
type Result struct {
	// ExitCode is what the launcher process should exit with.
	ExitCode int
	// Err is the first failure, if any.
	Err error
	// Dispatched reports whether the delegated program was started.
	Dispatched bool
}

// Launcher runs Ensure, Dispatch and Report strictly in that order.
type Launcher struct {
	env      Ensurer
	dispatch Dispatcher
	reporter *Reporter
	tracker  *progress.Tracker
	logger   *zap.Logger
	now      func() time.Time
}

// New wires a Launcher. A nil tracker or logger discards output.
func New(env Ensurer, dispatch Dispatcher, reporter *Reporter, tracker *progress.Tracker, logger *zap.Logger) *Launcher {
	if tracker == nil {
		tracker = progress.NewTracker(nil, uuid.Nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		env:      env,
		dispatch: dispatch,
		reporter: reporter,
		tracker:  tracker,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the pipeline with args forwarded to the delegated program.
// A setup failure stops before dispatch and skips the report.
func (l *Launcher) Run(ctx context.Context, args []string) Result {
	start := l.now()
	l.tracker.RunStarted()

	res := l.run(ctx, args)

	note := ""
	if res.Err != nil {
		note = res.Err.Error()
	}
	l.tracker.RunFinished(res.ExitCode, l.now().Sub(start), note)
	return res
}

func (l *Launcher) run(ctx context.Context, args []string) Result {
	h, err := l.env.Ensure(ctx)
	if err != nil {
		l.logger.Error("environment setup failed", zap.Error(err))
		return Result{ExitCode: command.ExitCode(err), Err: err}
	}

	err = l.dispatch.Dispatch(ctx, h, args)
	res := Result{ExitCode: command.ExitCode(err), Err: err, Dispatched: true}
	if err != nil {
		l.logger.Warn("scraper finished with an error",
			zap.Int("exit_code", res.ExitCode), zap.Error(err))
	}

	if l.reporter != nil {
		if rerr := l.reporter.Report(); rerr != nil {
			l.logger.Warn("could not print result location", zap.Error(rerr))
		}
	}
	return res
}

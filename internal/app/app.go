// Package app builds and holds the services one launcher invocation needs,
// acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrapelauncher/internal/browser"
	"github.com/JakeFAU/scrapelauncher/internal/clock/system"
	"github.com/JakeFAU/scrapelauncher/internal/command"
	"github.com/JakeFAU/scrapelauncher/internal/config"
	"github.com/JakeFAU/scrapelauncher/internal/dispatcher"
	"github.com/JakeFAU/scrapelauncher/internal/environment"
	"github.com/JakeFAU/scrapelauncher/internal/id/uuid"
	"github.com/JakeFAU/scrapelauncher/internal/launcher"
	"github.com/JakeFAU/scrapelauncher/internal/metrics"
	"github.com/JakeFAU/scrapelauncher/internal/progress"
	"github.com/JakeFAU/scrapelauncher/internal/progress/sinks"
)

// App holds the long-lived services for one invocation.
type App struct {
	logger   *zap.Logger
	registry *prometheus.Registry
	hub      *progress.Hub
	pusher   *metrics.Pusher
	launcher *launcher.Launcher
	baseDir  string
}

type options struct {
	runner  command.Runner
	stdout  io.Writer
	baseEnv []string
}

// Option customises New, mostly for tests.
type Option func(*options)

// WithRunner replaces the process runner.
func WithRunner(r command.Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// WithStdout redirects the completion report and the children's stdout.
func WithStdout(w io.Writer) Option {
	return func(o *options) {
		o.stdout = w
	}
}

// WithBaseEnv sets the environment the activated environment starts from.
func WithBaseEnv(env []string) Option {
	return func(o *options) {
		o.baseEnv = env
	}
}

// New wires every component from cfg. baseDir must be absolute.
func New(cfg config.Config, baseDir string, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	runID, err := uuid.New().NewRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID.String()))
	if o.runner == nil {
		o.runner = command.NewExecRunner(
			command.WithStdout(o.stdout),
			command.WithStderr(os.Stderr),
			command.WithLogger(logger.Named("command")),
		)
	}

	registry := metrics.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("register progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger.Named("progress")), promSink)
	tracker := progress.NewTracker(hub, runID)

	envOpts := []environment.Option{
		environment.WithTracker(tracker),
		environment.WithClock(system.New()),
		environment.WithLogger(logger.Named("environment")),
	}
	if cfg.Browser.Verify {
		envOpts = append(envOpts, environment.WithProber(browser.NewProber(browser.Config{
			CacheDir: cfg.Browser.CacheDir,
			Timeout:  cfg.ProbeTimeout(),
		}, logger.Named("browser"))))
	}
	if o.baseEnv != nil {
		envOpts = append(envOpts, environment.WithBaseEnv(o.baseEnv))
	}
	mgr, err := environment.NewManager(environment.Config{
		BaseDir:          baseDir,
		Dir:              cfg.Environment.Dir,
		Python:           cfg.Environment.Python,
		Manifest:         cfg.Environment.Manifest,
		BrowserEngine:    cfg.Browser.Engine,
		VerifyBrowser:    cfg.Browser.Verify,
		CleanupOnFailure: cfg.Environment.CleanupOnFailure,
	}, o.runner, envOpts...)
	if err != nil {
		_ = hub.Close(context.Background())
		return nil, fmt.Errorf("configure environment: %w", err)
	}

	d := dispatcher.New(dispatcher.Config{
		BaseDir: baseDir,
		Program: cfg.Dispatch.Program,
	}, o.runner, tracker, logger.Named("dispatcher"))

	reporter := launcher.NewReporter(o.stdout, cfg.Report.OutputDir)

	return &App{
		logger:   logger,
		registry: registry,
		hub:      hub,
		pusher: metrics.NewPusher(metrics.Config{
			URL: cfg.Metrics.PushgatewayURL,
			Job: cfg.Metrics.Job,
		}, registry, logger.Named("metrics")),
		launcher: launcher.New(mgr, d, reporter, tracker, logger),
		baseDir:  baseDir,
	}, nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Registry exposes the metrics collected during the run.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Run executes the launch pipeline with args.
func (a *App) Run(ctx context.Context, args []string) launcher.Result {
	return a.launcher.Run(ctx, args)
}

// BaseDir is the directory everything is resolved against.
func (a *App) BaseDir() string {
	return a.baseDir
}

// Close flushes progress events and pushes metrics when configured.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close progress hub: %w", err))
	}
	if err := a.pusher.Push(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ExecutableDir returns the directory holding the running binary with
// symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return filepath.Dir(resolved), nil
}

// BaseDir picks the launcher directory: the configured override, resolved
// against exeDir when relative, or exeDir itself.
func BaseDir(cfg config.Config, exeDir string) (string, error) {
	base := exeDir
	if cfg.Launcher.BaseDir != "" {
		base = config.Resolve(exeDir, cfg.Launcher.BaseDir)
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	return abs, nil
}

// ConfigPath returns the config file to load: LAUNCHER_CONFIG when set,
// otherwise launcher.yaml next to the launcher if it exists, otherwise "".
func ConfigPath(getenv func(string) string, exeDir string) string {
	if p := getenv(config.EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	candidate := filepath.Join(exeDir, config.DefaultFileName)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}

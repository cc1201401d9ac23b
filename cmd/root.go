// Package cmd defines the launcher's command line surface. There are no
// launcher flags: every token is forwarded to the scraper untouched.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrapelauncher/internal/app"
	"github.com/JakeFAU/scrapelauncher/internal/command"
	"github.com/JakeFAU/scrapelauncher/internal/config"
	"github.com/JakeFAU/scrapelauncher/internal/launcher"
	"github.com/JakeFAU/scrapelauncher/internal/logging"
)

// closeTimeout bounds flushing progress events and pushing metrics.
const closeTimeout = 15 * time.Second

// App defines what the root command needs from the wired services.
// This allows us to inject a fake app during tests.
type App interface {
	Run(ctx context.Context, args []string) launcher.Result
	Close(ctx context.Context) error
	Logger() *zap.Logger
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func() (App, error) {
	exeDir, err := app.ExecutableDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(app.ConfigPath(os.Getenv, exeDir))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	base, err := app.BaseDir(cfg, exeDir)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, base, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates the root command. The exit status of the run is stored
// in exitCode.
func newRootCmd(exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "launcher [arg...]",
		Short: "Prepares the scraper's Python environment and runs it.",
		Long: `launcher makes sure an isolated Python environment with the scraper's
dependencies and a headless browser exists next to it, creating it on the
first run, then runs scraper.py inside it with every argument passed through
unchanged.

Configuration is read from launcher.yaml next to the launcher (or the file
named by LAUNCHER_CONFIG) and LAUNCHER_* environment variables.`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			logger := a.Logger()

			stop := holdSignals(logger)
			res := a.Run(cmd.Context(), args)
			stop()

			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := a.Close(ctx); err != nil {
				logger.Warn("shutdown incomplete", zap.Error(err))
			}
			_ = logger.Sync()

			*exitCode = res.ExitCode
			return nil
		},
	}
}

// holdSignals keeps SIGINT and SIGTERM from killing the launcher while the
// child runs. The terminal already delivers them to the child, and the
// launcher must stay alive to report the child's exit status.
func holdSignals(logger *zap.Logger) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				logger.Info("signal received; waiting for the scraper to exit", zap.Stringer("signal", sig))
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func execute(args []string, errOut io.Writer) int {
	if args == nil {
		args = []string{}
	}
	code := 0
	root := newRootCmd(&code)
	root.SetArgs(args)
	root.SetErr(errOut)
	if err := runRoot(root, args); err != nil {
		fmt.Fprintf(errOut, "launcher: %v\n", err)
		return command.ExitCode(err)
	}
	return code
}

// runRoot executes root. Cobra routes its hidden completion commands before
// flag handling, so a first token naming one is run directly instead.
func runRoot(root *cobra.Command, args []string) error {
	ctx := context.Background()
	if len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd) {
		root.SetContext(ctx)
		return root.RunE(root, args)
	}
	return root.ExecuteContext(ctx)
}

// Execute runs the launcher with the process arguments and returns the exit
// status to use.
func Execute() int {
	return execute(os.Args[1:], os.Stderr)
}

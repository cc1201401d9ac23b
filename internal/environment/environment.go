// Package environment guarantees the isolated Python environment the scraper
// runs in. Ensure is the only entry point: it provisions the environment the
// first time (create, activate, install manifest, install browser engine) and
// only activates it afterwards. Callers receive a Handle and pass it on
// explicitly; nothing relies on ambient activation state.
package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrapelauncher/internal/browser"
	"github.com/JakeFAU/scrapelauncher/internal/clock/system"
	"github.com/JakeFAU/scrapelauncher/internal/command"
	"github.com/JakeFAU/scrapelauncher/internal/manifest"
	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

// ErrInterpreterMissing is returned when activation finds no interpreter
// inside the environment directory.
var ErrInterpreterMissing = errors.New("environment interpreter not found")

// State is the launcher's view of the environment at start-up.
type State int

// Environment states. The only transition is Uninitialized -> Ready.
const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepError reports which setup step failed.
type StepError struct {
	Step progress.Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Config describes where the environment lives and what goes into it.
type Config struct {
	// BaseDir is the absolute directory the launcher lives in.
	BaseDir string
	// Dir is the environment directory, relative to BaseDir.
	Dir string
	// Python is the host interpreter used to create the environment.
	Python string
	// Manifest is the dependency manifest, relative to BaseDir.
	Manifest string
	// BrowserEngine is passed to the engine installer.
	BrowserEngine string
	// VerifyBrowser launches the installed engine once after install.
	VerifyBrowser bool
	// CleanupOnFailure removes a partially provisioned environment.
	CleanupOnFailure bool
}

// Clock supplies the time recorded in the environment stamp.
type Clock interface {
	Now() time.Time
}

// Prober smoke-tests an installed browser engine.
type Prober interface {
	Probe(ctx context.Context, engine string) (browser.Info, error)
}

// Manager owns the once-only setup of one environment directory.
type Manager struct {
	cfg     Config
	runner  command.Runner
	prober  Prober
	tracker *progress.Tracker
	logger  *zap.Logger
	baseEnv []string
	clock   Clock

	mu     sync.Mutex
	handle *Handle
}

// Option configures a Manager.
type Option func(*Manager)

// WithProber enables the post-install browser probe.
func WithProber(p Prober) Option {
	return func(m *Manager) {
		m.prober = p
	}
}

// WithTracker reports each step through t.
func WithTracker(t *progress.Tracker) Option {
	return func(m *Manager) {
		m.tracker = t
	}
}

// WithClock overrides the clock used for the stamp.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithBaseEnv sets the environment activation starts from; defaults to os.Environ().
func WithBaseEnv(env []string) Option {
	return func(m *Manager) {
		m.baseEnv = append([]string(nil), env...)
	}
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config, runner command.Runner, opts ...Option) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("command runner is required")
	}
	if !filepath.IsAbs(cfg.BaseDir) {
		return nil, fmt.Errorf("base directory must be absolute, got %q", cfg.BaseDir)
	}
	if cfg.Dir == "" || cfg.Python == "" || cfg.Manifest == "" || cfg.BrowserEngine == "" {
		return nil, errors.New("environment dir, python, manifest and browser engine are required")
	}
	m := &Manager{
		cfg:    cfg,
		runner: runner,
		clock:  system.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.tracker == nil {
		m.tracker = progress.NewTracker(nil, uuid.Nil)
	}
	if m.baseEnv == nil {
		m.baseEnv = os.Environ()
	}
	return m, nil
}

// Dir returns the absolute environment directory.
func (m *Manager) Dir() string {
	return filepath.Join(m.cfg.BaseDir, m.cfg.Dir)
}

// ManifestPath returns the absolute manifest path.
func (m *Manager) ManifestPath() string {
	if filepath.IsAbs(m.cfg.Manifest) {
		return m.cfg.Manifest
	}
	return filepath.Join(m.cfg.BaseDir, m.cfg.Manifest)
}

// State inspects the environment marker.
func (m *Manager) State() (State, error) {
	info, err := os.Stat(m.Dir())
	switch {
	case err == nil && info.IsDir():
		return StateReady, nil
	case err == nil:
		return StateUninitialized, fmt.Errorf("environment path %s exists but is not a directory", m.Dir())
	case errors.Is(err, fs.ErrNotExist):
		return StateUninitialized, nil
	default:
		return StateUninitialized, fmt.Errorf("stat environment: %w", err)
	}
}

// Ensure returns a ready Handle, provisioning the environment if its
// directory does not exist yet. Steps run strictly in order and the first
// failure is returned as *StepError. Repeated calls return the same Handle.
func (m *Manager) Ensure(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		return m.handle, nil
	}

	state, err := m.State()
	if err != nil {
		return nil, err
	}
	m.logger.Info("environment state",
		zap.String("state", state.String()),
		zap.String("dir", m.Dir()),
	)

	var h *Handle
	switch state {
	case StateUninitialized:
		h, err = m.provision(ctx)
	default:
		h, err = m.activate()
		if err == nil {
			m.checkDrift()
		}
	}
	if err != nil {
		return nil, err
	}
	m.logger.Info("environment ready",
		zap.String("python", h.Python()),
		zap.String("bin_dir", h.BinDir()),
		zap.Bool("created", h.Created()),
	)
	m.handle = h
	return h, nil
}

func (m *Manager) provision(ctx context.Context) (h *Handle, err error) {
	manifestPath := m.ManifestPath()
	digest, err := manifest.Digest(manifestPath)
	if err != nil {
		return nil, &StepError{Step: progress.StepInstallDeps, Err: err}
	}

	created := false
	defer func() {
		if err != nil && created {
			m.cleanup()
		}
	}()

	err = m.step(progress.StepCreate, func() error {
		return m.runner.Run(ctx, command.Spec{
			Name: m.cfg.Python,
			Args: []string{"-m", "venv", m.Dir()},
			Dir:  m.cfg.BaseDir,
		})
	})
	// The directory may exist even when venv failed half way.
	created = true
	if err != nil {
		return nil, err
	}

	h, err = m.activate()
	if err != nil {
		return nil, err
	}
	h.created = true

	err = m.step(progress.StepInstallDeps, func() error {
		return m.runner.Run(ctx, command.Spec{
			Name: h.python,
			Args: []string{"-m", "pip", "install", "-r", manifestPath},
			Dir:  m.cfg.BaseDir,
			Env:  h.Env(),
		})
	})
	if err != nil {
		return nil, err
	}

	err = m.step(progress.StepInstallBrowser, func() error {
		return m.runner.Run(ctx, command.Spec{
			Name: h.python,
			Args: []string{"-m", "playwright", "install", m.cfg.BrowserEngine},
			Dir:  m.cfg.BaseDir,
			Env:  h.Env(),
		})
	})
	if err != nil {
		return nil, err
	}

	if m.cfg.VerifyBrowser && m.prober != nil {
		err = m.step(progress.StepProbeBrowser, func() error {
			info, probeErr := m.prober.Probe(ctx, m.cfg.BrowserEngine)
			if probeErr != nil {
				return probeErr
			}
			m.logger.Info("browser engine verified",
				zap.String("product", info.Product),
				zap.String("exec_path", info.ExecPath),
			)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	stamp := manifest.Stamp{
		ManifestDigest: digest,
		BrowserEngine:  m.cfg.BrowserEngine,
		CreatedAt:      m.clock.Now(),
	}
	if err = manifest.WriteStamp(m.Dir(), stamp); err != nil {
		return nil, fmt.Errorf("record environment stamp: %w", err)
	}
	return h, nil
}

func (m *Manager) activate() (*Handle, error) {
	var h *Handle
	err := m.step(progress.StepActivate, func() error {
		var err error
		h, err = Activate(m.Dir(), m.baseEnv)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (m *Manager) step(step progress.Step, fn func() error) error {
	finish := m.tracker.Step(step)
	err := fn()
	if err != nil {
		finish(command.ExitCode(err), err)
		return &StepError{Step: step, Err: err}
	}
	finish(0, nil)
	return nil
}

func (m *Manager) cleanup() {
	if !m.cfg.CleanupOnFailure {
		m.logger.Warn("leaving partially provisioned environment in place; delete it to retry setup",
			zap.String("dir", m.Dir()))
		return
	}
	if err := os.RemoveAll(m.Dir()); err != nil {
		m.logger.Error("failed to remove partially provisioned environment",
			zap.String("dir", m.Dir()), zap.Error(err))
		return
	}
	m.logger.Info("removed partially provisioned environment", zap.String("dir", m.Dir()))
}

// checkDrift warns when the environment was built from different inputs.
// It never reprovisions.
func (m *Manager) checkDrift() {
	stamp, err := manifest.ReadStamp(m.Dir())
	if errors.Is(err, manifest.ErrNoStamp) {
		m.logger.Warn("environment has no setup stamp; if setup was interrupted, delete it to reprovision",
			zap.String("dir", m.Dir()))
		return
	}
	if err != nil {
		m.logger.Warn("could not read environment stamp", zap.Error(err))
		return
	}
	digest, err := manifest.Digest(m.ManifestPath())
	if err != nil {
		m.logger.Warn("could not digest manifest", zap.Error(err))
		return
	}
	drift := manifest.Compare(stamp, digest, m.cfg.BrowserEngine)
	if drift.Any() {
		m.logger.Warn("environment was provisioned from different inputs; delete it to reprovision",
			zap.String("dir", m.Dir()),
			zap.Bool("manifest_changed", drift.ManifestChanged),
			zap.Bool("engine_changed", drift.EngineChanged),
			zap.Time("provisioned_at", stamp.CreatedAt),
		)
	}
}

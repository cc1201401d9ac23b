// Package browser finds the headless engine installed into the environment and
// optionally smoke-tests it with chromedp so a broken install fails setup
// instead of the first scrape.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// EnvBrowsersPath is the variable playwright honours for its install location.
const EnvBrowsersPath = "PLAYWRIGHT_BROWSERS_PATH"

// ErrNotInstalled is returned when no executable for the engine was found.
var ErrNotInstalled = errors.New("browser engine not installed")

// ErrUnsupportedEngine is returned when the engine cannot be driven over CDP.
var ErrUnsupportedEngine = errors.New("browser engine cannot be probed over CDP")

// Info describes a browser that answered the probe.
type Info struct {
	ExecPath        string
	Product         string
	ProtocolVersion string
	UserAgent       string
}

// Config controls where engines are searched for and how long a probe may take.
type Config struct {
	// CacheDir overrides the playwright browsers directory.
	CacheDir string
	// Timeout bounds a single probe; defaults to 30s.
	Timeout time.Duration
}

// Prober locates and launches an installed engine.
type Prober struct {
	cfg    Config
	logger *zap.Logger
}

// NewProber creates a Prober.
func NewProber(cfg Config, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{cfg: cfg, logger: logger}
}

// SupportsProbe reports whether engine can be located and driven over CDP.
// Only playwright's bundled chromium lives under the browsers cache.
func SupportsProbe(engine string) bool {
	return engine == "chromium"
}

// Probe starts the engine headless, asks it for its version and shuts it down.
func (p *Prober) Probe(ctx context.Context, engine string) (Info, error) {
	if !SupportsProbe(engine) {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}
	cacheDir := p.cfg.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	execPath, err := Locate(cacheDir, engine)
	if err != nil {
		return Info{}, err
	}
	p.logger.Debug("probing browser", zap.String("exec_path", execPath))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, p.cfg.Timeout)
	defer cancel()

	info := Info{ExecPath: execPath}
	err = chromedp.Run(taskCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		protocol, product, _, userAgent, _, err := cdpbrowser.GetVersion().Do(ctx)
		if err != nil {
			return err
		}
		info.ProtocolVersion = protocol
		info.Product = product
		info.UserAgent = userAgent
		return nil
	}))
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", execPath, err)
	}
	return info, nil
}

// DefaultCacheDir mirrors playwright's own lookup of its browsers directory.
func DefaultCacheDir() string {
	if dir := os.Getenv(EnvBrowsersPath); dir != "" && dir != "0" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "ms-playwright")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "ms-playwright")
		}
		return filepath.Join(home, "AppData", "Local", "ms-playwright")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "ms-playwright")
		}
		return filepath.Join(home, ".cache", "ms-playwright")
	}
}

// executableCandidates lists per-platform paths below a "<engine>-<revision>"
// directory, newest layout first.
func executableCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			filepath.Join("chrome-mac", "Chromium.app", "Contents", "MacOS", "Chromium"),
			filepath.Join("chrome-mac-arm64", "Chromium.app", "Contents", "MacOS", "Chromium"),
		}
	case "windows":
		return []string{
			filepath.Join("chrome-win64", "chrome.exe"),
			filepath.Join("chrome-win", "chrome.exe"),
		}
	default:
		return []string{
			filepath.Join("chrome-linux64", "chrome"),
			filepath.Join("chrome-linux", "chrome"),
		}
	}
}

// Locate returns the newest installed executable for engine under cacheDir.
func Locate(cacheDir, engine string) (string, error) {
	return locate(cacheDir, engine, runtime.GOOS)
}

func locate(cacheDir, engine, goos string) (string, error) {
	if cacheDir == "" {
		return "", fmt.Errorf("%w: no browsers directory", ErrNotInstalled)
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	prefix := "chromium-"
	var revisions []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			revisions = append(revisions, entry.Name())
		}
	}
	// Newest revision first; revisions are numeric suffixes of equal width in practice.
	sort.Slice(revisions, func(i, j int) bool {
		ri, rj := revisions[i][len(prefix):], revisions[j][len(prefix):]
		if len(ri) != len(rj) {
			return len(ri) > len(rj)
		}
		return ri > rj
	})
	for _, rev := range revisions {
		for _, candidate := range executableCandidates(goos) {
			path := filepath.Join(cacheDir, rev, candidate)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s under %s", ErrNotInstalled, engine, cacheDir)
}

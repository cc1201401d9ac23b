package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func touchExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o700)) //nolint:gosec // test fixture
}

func TestLocatePrefersNewestRevision(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	touchExecutable(t, filepath.Join(cache, "chromium-999", "chrome-linux", "chrome"))
	touchExecutable(t, filepath.Join(cache, "chromium-1148", "chrome-linux", "chrome"))
	touchExecutable(t, filepath.Join(cache, "chromium_headless_shell-2000", "chrome-linux", "chrome"))

	got, err := locate(cache, "chromium", "linux")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cache, "chromium-1148", "chrome-linux", "chrome"), got)
}

func TestLocatePlatformLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		rel  string
	}{
		{goos: "linux", rel: filepath.Join("chrome-linux64", "chrome")},
		{goos: "darwin", rel: filepath.Join("chrome-mac", "Chromium.app", "Contents", "MacOS", "Chromium")},
		{goos: "windows", rel: filepath.Join("chrome-win", "chrome.exe")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.goos, func(t *testing.T) {
			t.Parallel()
			cache := t.TempDir()
			want := filepath.Join(cache, "chromium-1200", tt.rel)
			touchExecutable(t, want)

			got, err := locate(cache, "chromium", tt.goos)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestLocateNotInstalled(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(cache, "chromium-1148"), 0o750))

	_, err := locate(cache, "chromium", "linux")
	require.ErrorIs(t, err, ErrNotInstalled)

	_, err = locate(filepath.Join(cache, "missing"), "chromium", "linux")
	require.ErrorIs(t, err, ErrNotInstalled)

	_, err = locate("", "chromium", "linux")
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestDefaultCacheDirHonoursEnv(t *testing.T) {
	t.Setenv(EnvBrowsersPath, "/opt/pw-browsers")
	require.Equal(t, "/opt/pw-browsers", DefaultCacheDir())
}

func TestProbeRejectsNonCDPEngines(t *testing.T) {
	t.Parallel()

	p := NewProber(Config{CacheDir: t.TempDir()}, nil)
	for _, engine := range []string{"firefox", "webkit", "chrome", "msedge"} {
		require.False(t, SupportsProbe(engine), engine)
		_, err := p.Probe(context.Background(), engine)
		require.ErrorIs(t, err, ErrUnsupportedEngine, engine)
	}
	require.True(t, SupportsProbe("chromium"))
}

func TestProbeReportsMissingEngine(t *testing.T) {
	t.Parallel()

	p := NewProber(Config{CacheDir: t.TempDir(), Timeout: time.Second}, nil)
	_, err := p.Probe(context.Background(), "chromium")
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestNewProberDefaultTimeout(t *testing.T) {
	t.Parallel()

	p := NewProber(Config{}, nil)
	require.Equal(t, 30*time.Second, p.cfg.Timeout)
}

// TestProbeInstalledChromium launches a real browser; opt in with LAUNCHER_BROWSER_PROBE_TEST=1.
func TestProbeInstalledChromium(t *testing.T) {
	if os.Getenv("LAUNCHER_BROWSER_PROBE_TEST") != "1" {
		t.Skip("set LAUNCHER_BROWSER_PROBE_TEST=1 to launch a real browser")
	}
	if _, err := Locate(DefaultCacheDir(), "chromium"); err != nil {
		t.Skipf("no playwright chromium installed: %v", err)
	}

	p := NewProber(Config{Timeout: 30 * time.Second}, nil)
	info, err := p.Probe(context.Background(), "chromium")
	require.NoError(t, err)
	require.NotEmpty(t, info.Product)
	require.NotEmpty(t, info.UserAgent)
}

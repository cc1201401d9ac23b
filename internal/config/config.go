// Package config loads and validates launcher configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/scrapelauncher/internal/browser"
)

// EnvPrefix scopes environment overrides, e.g. LAUNCHER_BROWSER_ENGINE=firefox.
const EnvPrefix = "LAUNCHER"

// DefaultFileName is looked up next to the launcher when no path is given.
const DefaultFileName = "launcher.yaml"

// Config captures all launcher configuration knobs loaded via Viper.
type Config struct {
	Launcher    LauncherConfig    `mapstructure:"launcher"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Report      ReportConfig      `mapstructure:"report"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// LauncherConfig holds process-wide settings.
type LauncherConfig struct {
	// BaseDir overrides the directory everything else is resolved against.
	// Empty means the directory holding the launcher executable.
	BaseDir string `mapstructure:"base_dir"`
}

// EnvironmentConfig describes the isolated Python environment.
type EnvironmentConfig struct {
	Dir              string `mapstructure:"dir"`
	Python           string `mapstructure:"python"`
	Manifest         string `mapstructure:"manifest"`
	CleanupOnFailure bool   `mapstructure:"cleanup_on_failure"`
}

// BrowserConfig controls the headless engine install and smoke probe.
type BrowserConfig struct {
	Engine              string `mapstructure:"engine"`
	Verify              bool   `mapstructure:"verify"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
	// CacheDir overrides where installed engines are searched for.
	CacheDir string `mapstructure:"cache_dir"`
}

// DispatchConfig names the delegated program.
type DispatchConfig struct {
	Program string `mapstructure:"program"`
}

// ReportConfig names the results location mentioned after a run.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggingConfig toggles zap development features and verbosity.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds a Config from disk/environment. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("launcher.base_dir", "")
	v.SetDefault("environment.dir", "venv")
	v.SetDefault("environment.python", "python3")
	v.SetDefault("environment.manifest", "requirements.txt")
	v.SetDefault("environment.cleanup_on_failure", true)
	v.SetDefault("browser.engine", "chromium")
	v.SetDefault("browser.verify", false)
	v.SetDefault("browser.probe_timeout_seconds", 30)
	v.SetDefault("browser.cache_dir", "")
	v.SetDefault("dispatch.program", "scraper.py")
	v.SetDefault("report.output_dir", "output")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "scrapelauncher")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Environment.Dir) == "" {
		return fmt.Errorf("environment.dir must be set")
	}
	if !filepath.IsLocal(c.Environment.Dir) || filepath.Clean(c.Environment.Dir) == "." {
		return fmt.Errorf("environment.dir must be relative to the launcher directory")
	}
	if strings.TrimSpace(c.Environment.Python) == "" {
		return fmt.Errorf("environment.python must be set")
	}
	if strings.TrimSpace(c.Environment.Manifest) == "" {
		return fmt.Errorf("environment.manifest must be set")
	}
	if strings.TrimSpace(c.Browser.Engine) == "" {
		return fmt.Errorf("browser.engine must be set")
	}
	if c.Browser.Verify && !browser.SupportsProbe(c.Browser.Engine) {
		return fmt.Errorf("browser.verify only supports the chromium engine, got %q", c.Browser.Engine)
	}
	if c.Browser.Verify && c.Browser.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.probe_timeout_seconds must be > 0 when browser.verify is enabled")
	}
	if strings.TrimSpace(c.Dispatch.Program) == "" {
		return fmt.Errorf("dispatch.program must be set")
	}
	if strings.TrimSpace(c.Report.OutputDir) == "" {
		return fmt.Errorf("report.output_dir must be set")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level is invalid: %w", err)
	}
	if c.Metrics.PushgatewayURL != "" && strings.TrimSpace(c.Metrics.Job) == "" {
		return fmt.Errorf("metrics.job must be set when metrics.pushgateway_url is set")
	}
	return nil
}

// ProbeTimeout converts the probe timeout into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Browser.ProbeTimeoutSeconds) * time.Second
}

// Resolve returns path joined onto base unless it is already absolute.
func Resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

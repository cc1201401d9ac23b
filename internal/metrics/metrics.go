// Package metrics owns the launcher's Prometheus registry and pushes it to a
// Pushgateway at the end of a run. A launcher is a short-lived batch job, so
// nothing is served for scraping.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// Config selects the Pushgateway target.
type Config struct {
	// URL of the Pushgateway; empty disables pushing.
	URL string
	// Job is the grouping job label.
	Job string
	// Instance overrides the instance grouping label; defaults to the hostname.
	Instance string
	// Timeout bounds a single push; defaults to 10s.
	Timeout time.Duration
}

// NewRegistry returns an isolated registry so pushes only carry launcher series.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Pusher sends a registry's metrics to a Pushgateway.
type Pusher struct {
	cfg      Config
	gatherer prometheus.Gatherer
	client   *http.Client
	logger   *zap.Logger
}

// NewPusher creates a Pusher. It returns nil when cfg.URL is empty; a nil
// Pusher's Push is a no-op.
func NewPusher(cfg Config, gatherer prometheus.Gatherer, logger *zap.Logger) *Pusher {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Instance == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Instance = host
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher{
		cfg:      cfg,
		gatherer: gatherer,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// Push replaces the job/instance group on the Pushgateway with the current
// registry contents.
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	pusher := push.New(p.cfg.URL, p.cfg.Job).
		Gatherer(p.gatherer).
		Client(p.client)
	if p.cfg.Instance != "" {
		pusher = pusher.Grouping("instance", p.cfg.Instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", p.cfg.URL, err)
	}
	p.logger.Debug("pushed metrics", zap.String("url", p.cfg.URL), zap.String("job", p.cfg.Job))
	return nil
}

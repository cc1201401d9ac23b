package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

// PrometheusSink turns launcher events into Prometheus collectors. The
// collectors live on the registry handed in, which the metrics package can
// push to a Pushgateway when the run ends.
type PrometheusSink struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	lastExitCode prometheus.Gauge
	lastRunTime  prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launcher_runs_total",
			Help: "Launcher runs partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launcher_run_duration_seconds",
			Help:    "Wall time per launcher run.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"result"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launcher_steps_total",
			Help: "Completed launcher steps partitioned by step and result.",
		}, []string{"step", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launcher_step_duration_seconds",
			Help:    "Wall time per launcher step.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"step"}),
		lastExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launcher_last_exit_code",
			Help: "Exit code of the most recent run.",
		}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launcher_last_run_finished_timestamp_seconds",
			Help: "Unix time the most recent run finished.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsTotal,
		s.runDuration,
		s.stepsTotal,
		s.stepDuration,
		s.lastExitCode,
		s.lastRunTime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageStepDone:
			s.observeStep(evt, "success")
		case progress.StageStepError:
			s.observeStep(evt, "error")
		case progress.StageRunDone:
			s.observeRun(evt, "success")
		case progress.StageRunError:
			s.observeRun(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) observeStep(evt progress.Event, result string) {
	s.stepsTotal.WithLabelValues(string(evt.Step), result).Inc()
	if evt.Dur > 0 {
		s.stepDuration.WithLabelValues(string(evt.Step)).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeRun(evt progress.Event, result string) {
	s.runsTotal.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	s.lastExitCode.Set(float64(evt.ExitCode))
	s.lastRunTime.Set(float64(evt.TS.Unix()))
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

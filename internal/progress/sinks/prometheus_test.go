package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow step and run events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	finished := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart},
		{RunID: runID, TS: time.Now(), Stage: progress.StageStepStart, Step: progress.StepActivate},
		{RunID: runID, TS: time.Now(), Stage: progress.StageStepDone, Step: progress.StepActivate, Dur: 5 * time.Millisecond},
		{RunID: runID, TS: time.Now(), Stage: progress.StageStepError, Step: progress.StepDispatch, ExitCode: 2, Dur: time.Minute},
		{RunID: runID, TS: finished, Stage: progress.StageRunError, ExitCode: 2, Dur: time.Minute},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.stepsTotal.WithLabelValues("activate_env", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stepsTotal.WithLabelValues("dispatch", "error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsTotal.WithLabelValues("error")))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.lastExitCode))
	require.Equal(t, float64(finished.Unix()), testutil.ToFloat64(sink.lastRunTime))
	require.Equal(t, 2, testutil.CollectAndCount(sink.stepDuration, "launcher_step_duration_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

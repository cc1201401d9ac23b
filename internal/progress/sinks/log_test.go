package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	runID := uuid.New()
	id := progress.UUIDToBytes(runID)
	batch := []progress.Event{
		{RunID: id, TS: time.Now(), Stage: progress.StageStepStart, Step: progress.StepInstallDeps},
		{RunID: id, TS: time.Now(), Stage: progress.StageStepError, Step: progress.StepInstallDeps, ExitCode: 1, Note: "pip failed"},
		{RunID: id, TS: time.Now(), Stage: progress.StageRunDone, Dur: time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, zapcore.InfoLevel, entries[2].Level)

	fields := entries[1].ContextMap()
	require.Equal(t, runID.String(), fields["run_id"])
	require.Equal(t, "install_deps", fields["step"])
	require.EqualValues(t, 1, fields["exit_code"])
	require.Equal(t, "pip failed", fields["note"])
}

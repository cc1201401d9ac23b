package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrapelauncher/internal/progress"
)

// LogSink emits one structured log line per event. Step starts are logged at
// debug so a normal run prints a line per finished step.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Step != "" {
			fields = append(fields, zap.String("step", string(evt.Step)))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.ExitCode != 0 {
			fields = append(fields, zap.Int("exit_code", evt.ExitCode))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageStepStart, progress.StageRunStart:
			s.logger.Debug("progress event", fields...)
		case progress.StageStepError, progress.StageRunError:
			s.logger.Warn("progress event", fields...)
		default:
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it flushes the logger.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	return nil
}

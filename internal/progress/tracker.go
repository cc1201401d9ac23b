package progress

import (
	"time"

	"github.com/google/uuid"
)

// Tracker stamps events for one run and times its steps.
type Tracker struct {
	emitter Emitter
	runID   [16]byte
	now     func() time.Time
}

// NewTracker binds emitter to runID. A nil emitter discards events.
func NewTracker(emitter Emitter, runID uuid.UUID) *Tracker {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Tracker{
		emitter: emitter,
		runID:   UUIDToBytes(runID),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RunStarted emits RUN_START.
func (t *Tracker) RunStarted() {
	t.emit(Event{Stage: StageRunStart})
}

// RunFinished emits RUN_DONE for exit code 0 and RUN_ERROR otherwise.
func (t *Tracker) RunFinished(exitCode int, dur time.Duration, note string) {
	stage := StageRunDone
	if exitCode != 0 {
		stage = StageRunError
	}
	t.emit(Event{Stage: stage, ExitCode: exitCode, Dur: dur, Note: note})
}

// StepFinisher completes a step started with Step.
type StepFinisher func(exitCode int, err error)

// Step emits STEP_START and returns a function emitting STEP_DONE or
// STEP_ERROR with the elapsed time.
func (t *Tracker) Step(step Step) StepFinisher {
	start := t.now()
	t.emit(Event{Stage: StageStepStart, Step: step})
	return func(exitCode int, err error) {
		evt := Event{Stage: StageStepDone, Step: step, ExitCode: exitCode, Dur: t.now().Sub(start)}
		if err != nil {
			evt.Stage = StageStepError
			evt.Note = err.Error()
		}
		t.emit(evt)
	}
}

func (t *Tracker) emit(evt Event) {
	evt.RunID = t.runID
	evt.TS = t.now()
	if evt.Dur < 0 {
		evt.Dur = 0
	}
	t.emitter.Emit(evt)
}

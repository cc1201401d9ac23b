package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageStepStart Stage = "STEP_START"
	StageStepDone  Stage = "STEP_DONE"
	StageStepError Stage = "STEP_ERROR"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
)

// Step names one unit of launcher work.
type Step string

// Launcher steps in pipeline order.
const (
	StepCreate         Step = "create_env"
	StepActivate       Step = "activate_env"
	StepInstallDeps    Step = "install_deps"
	StepInstallBrowser Step = "install_browser"
	StepProbeBrowser   Step = "probe_browser"
	StepDispatch       Step = "dispatch"
)

// Event captures a single launcher milestone.
type Event struct {
	// RunID identifies one launcher invocation using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Step is set for step-scoped stages.
	Step Step
	// ExitCode carries the child's status for failed steps and finished runs.
	ExitCode int
	// Dur is the elapsed time of the step or run.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageStepStart, StageStepDone, StageStepError:
		if e.Step == "" {
			return fmt.Errorf("%s requires step", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

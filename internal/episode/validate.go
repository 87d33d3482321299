package episode

import (
	"encoding/json"

	"github.com/memoryd/engine/internal/errs"
)

// Size and count limits from the data model (§3).
const (
	MaxTaskDescriptionBytes = 10 * 1024       // 10 KiB
	MaxStepObservationBytes = 10 * 1024       // 10 KiB
	MaxStepParametersBytes  = 1024 * 1024     // 1 MiB
	MaxSteps                = 1000
	MaxSerializedEpisodeBytes = 10 * 1024 * 1024 // 10 MiB
)

// ValidateTaskDescription enforces the ≤10 KiB UTF-8 text limit.
func ValidateTaskDescription(desc string) error {
	if desc == "" {
		return errs.InvalidInput("task_description must not be empty")
	}
	if len(desc) > MaxTaskDescriptionBytes {
		return errs.InvalidInput("task_description exceeds 10 KiB")
	}
	return nil
}

// ValidateStep checks a candidate step against §3's per-step limits. It
// does not check step_number monotonicity — that depends on the episode's
// current step count, checked by ValidateNextStepNumber.
func ValidateStep(s ExecutionStep) error {
	if len(s.Parameters) > MaxStepParametersBytes {
		return errs.InvalidInput("step parameters exceed 1 MiB")
	}
	if len(s.Result.Observation()) > MaxStepObservationBytes {
		return errs.InvalidInput("step observation exceeds 10 KiB")
	}
	if s.Tool == "" {
		return errs.InvalidInput("step tool must not be empty")
	}
	switch s.Result.Kind {
	case StepSuccess, StepError, StepTimeout:
	default:
		return errs.InvalidInput("step result kind " + quote(string(s.Result.Kind)) + " is not recognized")
	}
	return nil
}

// ValidateNextStepNumber checks that appending a step to an episode with
// currentStepCount steps keeps step numbers dense and 1-indexed, and that
// the episode does not exceed MaxSteps.
func ValidateNextStepNumber(currentStepCount, candidateStepNumber int) error {
	if currentStepCount >= MaxSteps {
		return errs.InvalidInput("episode already has the maximum of 1000 steps")
	}
	if candidateStepNumber != currentStepCount+1 {
		return errs.InvalidInput("step_number must strictly increase by one starting at 1")
	}
	return nil
}

// SerializedSize returns the JSON-serialized size of e in bytes, the
// measure against which the 10 MiB whole-episode cap is enforced.
func SerializedSize(e *Episode) (int, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return 0, errs.Storage("serialize episode for size check", err)
	}
	return len(b), nil
}

// ValidateSerializedSize enforces the ≤10 MiB whole-episode cap.
func ValidateSerializedSize(e *Episode) error {
	n, err := SerializedSize(e)
	if err != nil {
		return err
	}
	if n > MaxSerializedEpisodeBytes {
		return errs.InvalidInput("serialized episode exceeds 10 MiB")
	}
	return nil
}

// ValidateComplete checks the invariants a completed episode must satisfy
// (§8): end_time and outcome set, steps bounded, size bounded.
func ValidateComplete(e *Episode) error {
	if e.EndTime == nil {
		return errs.InvalidInput("completed episode must have end_time set")
	}
	if e.Outcome == nil {
		return errs.InvalidInput("completed episode must have outcome set")
	}
	if len(e.Steps) > MaxSteps {
		return errs.InvalidInput("episode exceeds 1000 steps")
	}
	for i, s := range e.Steps {
		if s.StepNumber != i+1 {
			return errs.InvalidInput("step numbering is not dense and 1-indexed")
		}
	}
	return ValidateSerializedSize(e)
}

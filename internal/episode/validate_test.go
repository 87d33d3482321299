package episode

import (
	"strings"
	"testing"
	"time"

	"github.com/memoryd/engine/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaskDescriptionRejectsEmptyAndOversized(t *testing.T) {
	assert.ErrorIs(t, ValidateTaskDescription(""), errs.ErrInvalidInput)
	assert.NoError(t, ValidateTaskDescription("fine"))
	assert.ErrorIs(t, ValidateTaskDescription(strings.Repeat("x", MaxTaskDescriptionBytes+1)), errs.ErrInvalidInput)
}

func TestValidateStepRejectsOversizedObservation(t *testing.T) {
	s := ExecutionStep{
		Tool:   "shell",
		Result: StepResult{Kind: StepSuccess, Output: strings.Repeat("x", MaxStepObservationBytes+1)},
	}
	assert.ErrorIs(t, ValidateStep(s), errs.ErrInvalidInput)
}

func TestValidateStepRejectsOversizedParameters(t *testing.T) {
	s := ExecutionStep{
		Tool:       "shell",
		Parameters: []byte(strings.Repeat("a", MaxStepParametersBytes+1)),
		Result:     StepResult{Kind: StepSuccess},
	}
	assert.ErrorIs(t, ValidateStep(s), errs.ErrInvalidInput)
}

func TestValidateStepRejectsEmptyTool(t *testing.T) {
	s := ExecutionStep{Result: StepResult{Kind: StepSuccess}}
	assert.ErrorIs(t, ValidateStep(s), errs.ErrInvalidInput)
}

func TestValidateNextStepNumberEnforcesDenseOrdering(t *testing.T) {
	assert.NoError(t, ValidateNextStepNumber(0, 1))
	assert.NoError(t, ValidateNextStepNumber(3, 4))
	assert.ErrorIs(t, ValidateNextStepNumber(3, 6), errs.ErrInvalidInput)
	assert.ErrorIs(t, ValidateNextStepNumber(MaxSteps, MaxSteps+1), errs.ErrInvalidInput)
}

func TestValidateCompleteRequiresEndTimeAndOutcome(t *testing.T) {
	e := &Episode{ID: "ep_x", Steps: []ExecutionStep{{StepNumber: 1}}}
	assert.ErrorIs(t, ValidateComplete(e), errs.ErrInvalidInput)

	end := time.Now()
	e.EndTime = &end
	assert.ErrorIs(t, ValidateComplete(e), errs.ErrInvalidInput, "still missing outcome")

	e.Outcome = &Outcome{Kind: OutcomeSuccess}
	require.NoError(t, ValidateComplete(e))
}

func TestValidateCompleteRejectsGappedStepNumbers(t *testing.T) {
	end := time.Now()
	e := &Episode{
		ID:      "ep_x",
		EndTime: &end,
		Outcome: &Outcome{Kind: OutcomeSuccess},
		Steps: []ExecutionStep{
			{StepNumber: 1},
			{StepNumber: 3},
		},
	}
	assert.ErrorIs(t, ValidateComplete(e), errs.ErrInvalidInput)
}

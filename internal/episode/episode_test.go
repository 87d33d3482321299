package episode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEpisode() *Episode {
	return &Episode{
		ID:              "ep_test",
		TaskType:        TaskCodeGeneration,
		TaskDescription: "Build REST API",
		Context: TaskContext{
			Domain:     "web-api",
			Language:   "rust",
			Complexity: ComplexityModerate,
		},
		StartTime: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Steps: []ExecutionStep{
			{StepNumber: 1, Tool: "planner", Action: "plan", Result: StepResult{Kind: StepSuccess, Output: "ok"}},
		},
	}
}

func TestCompleteRequiresEndTimeAndOutcome(t *testing.T) {
	e := sampleEpisode()
	assert.False(t, e.Complete())

	end := e.StartTime.Add(time.Minute)
	e.EndTime = &end
	assert.False(t, e.Complete(), "outcome still missing")

	e.Outcome = &Outcome{Kind: OutcomeSuccess, Verdict: "done"}
	assert.True(t, e.Complete())
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	e := sampleEpisode()
	end := e.StartTime.Add(time.Minute)
	e.EndTime = &end
	e.Outcome = &Outcome{Kind: OutcomeSuccess, Verdict: "done", Artifacts: []string{"a.go"}}
	e.Metadata = map[string]string{"k": "v"}
	e.Tags = []string{"web-api"}

	clone := e.Clone()
	require.NotNil(t, clone)

	clone.Tags[0] = "mutated"
	clone.Metadata["k"] = "mutated"
	clone.Outcome.Artifacts[0] = "mutated"
	*clone.EndTime = clone.EndTime.Add(time.Hour)

	assert.Equal(t, "web-api", e.Tags[0], "clone mutation must not leak back to original")
	assert.Equal(t, "v", e.Metadata["k"])
	assert.Equal(t, "a.go", e.Outcome.Artifacts[0])
	assert.Equal(t, end, *e.EndTime)
}

func TestTaskTypeValid(t *testing.T) {
	assert.True(t, TaskCodeGeneration.Valid())
	assert.False(t, TaskType("bogus").Valid())
}

func TestComplexityValid(t *testing.T) {
	assert.True(t, ComplexityComplex.Valid())
	assert.False(t, Complexity("extreme").Valid())
}

func TestStepResultObservation(t *testing.T) {
	assert.Equal(t, "out", StepResult{Kind: StepSuccess, Output: "out"}.Observation())
	assert.Equal(t, "boom", StepResult{Kind: StepError, Message: "boom"}.Observation())
	assert.Equal(t, "", StepResult{Kind: StepTimeout}.Observation())
}

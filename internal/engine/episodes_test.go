package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/storage/memcache"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store := memcache.New()
	return New(context.Background(), DefaultConfig(), store, nil)
}

// highQualityVerdict is a verdict long enough to saturate the
// completeness term's variable half (quality.completeness caps its
// bonus at a 100-character verdict).
var highQualityVerdict = strings.Repeat("resolved the failing build by pinning the dependency version. ", 3)

func stepsClearingGate() []episode.ExecutionStep {
	params, _ := json.Marshal(map[string]string{"detail": strings.Repeat("x", 400)})
	return []episode.ExecutionStep{
		{
			StepNumber: 1, Tool: "build", Action: "compile",
			Parameters: params,
			Result:     episode.StepResult{Kind: episode.StepError, Message: strings.Repeat("y", 400)},
			Timestamp:  time.Now().UTC(),
		},
		{
			StepNumber: 2, Tool: "build", Action: "compile_retry",
			Parameters: params,
			Result:     episode.StepResult{Kind: episode.StepSuccess, Output: strings.Repeat("z", 400)},
			Timestamp:  time.Now().UTC(),
		},
		{
			StepNumber: 3, Tool: "test", Action: "run_tests",
			Parameters: params,
			Result:     episode.StepResult{Kind: episode.StepSuccess, Output: strings.Repeat("z", 400)},
			Timestamp:  time.Now().UTC(),
		},
		{
			StepNumber: 4, Tool: "lint", Action: "run_lint",
			Parameters: params,
			Result:     episode.StepResult{Kind: episode.StepSuccess, Output: strings.Repeat("z", 400)},
			Timestamp:  time.Now().UTC(),
		},
	}
}

func TestEpisodeLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StartEpisode(ctx, "fix the flaky build", episode.TaskContext{
		Domain:     "ci",
		Language:   "go",
		Complexity: episode.ComplexityModerate,
		Tags:       []string{"build", "flaky", "ci"},
	}, episode.TaskDebugging)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for _, s := range stepsClearingGate() {
		require.NoError(t, e.LogStep(ctx, id, s))
	}

	err = e.CompleteEpisode(ctx, id, episode.Outcome{Kind: episode.OutcomeSuccess, Verdict: highQualityVerdict})
	require.NoError(t, err)

	got, err := e.GetEpisode(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Complete())
	assert.NotNil(t, got.Reward)
	assert.NotNil(t, got.Reflection)
	assert.NotNil(t, got.SalientFeatures)

	results, err := e.RetrieveRelevantContext(ctx, "flaky build", episode.TaskContext{Domain: "ci", Tags: []string{"build"}}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
}

func TestCompleteEpisodeRejectsLowQualityWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StartEpisode(ctx, "a trivial task", episode.TaskContext{Complexity: episode.ComplexitySimple}, episode.TaskOther)
	require.NoError(t, err)

	require.NoError(t, e.LogStep(ctx, id, episode.ExecutionStep{
		StepNumber: 1, Tool: "noop", Action: "noop",
		Result: episode.StepResult{Kind: episode.StepSuccess},
	}))

	err = e.CompleteEpisode(ctx, id, episode.Outcome{Kind: episode.OutcomeSuccess})
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))

	_, err = e.GetEpisode(ctx, id)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err), "quality-gate rejection removes the in-progress episode that was never durably completed")
}

func TestCompleteEpisodeRejectsUnknownID(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	err := e.CompleteEpisode(ctx, "does-not-exist", episode.Outcome{Kind: episode.OutcomeSuccess})
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestLogStepRejectsOnCompletedEpisode(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StartEpisode(ctx, "complete then log", episode.TaskContext{Domain: "ci", Language: "go", Complexity: episode.ComplexitySimple}, episode.TaskOther)
	require.NoError(t, err)
	for _, s := range stepsClearingGate() {
		require.NoError(t, e.LogStep(ctx, id, s))
	}
	require.NoError(t, e.CompleteEpisode(ctx, id, episode.Outcome{Kind: episode.OutcomeSuccess, Verdict: highQualityVerdict}))

	err = e.LogStep(ctx, id, episode.ExecutionStep{StepNumber: 5, Tool: "noop", Action: "noop", Result: episode.StepResult{Kind: episode.StepSuccess}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInvalidInput))
}

func TestQueryByTimeRange(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id, err := e.StartEpisode(ctx, "indexed episode", episode.TaskContext{Complexity: episode.ComplexitySimple}, episode.TaskOther)
	require.NoError(t, err)

	now := time.Now().UTC()
	ids := e.QueryByTimeRange(now.Add(-time.Hour), now.Add(time.Hour), 0)
	assert.Contains(t, ids, id)

	ids = e.QueryByTimeRange(now.Add(time.Hour), now.Add(2*time.Hour), 0)
	assert.NotContains(t, ids, id)
}

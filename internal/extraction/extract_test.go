package extraction

import (
	"testing"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(n int, tool string, kind episode.StepResultKind, msg string) episode.ExecutionStep {
	r := episode.StepResult{Kind: kind}
	switch kind {
	case episode.StepSuccess:
		r.Output = msg
	case episode.StepError:
		r.Message = msg
	}
	return episode.ExecutionStep{
		StepNumber: n,
		Timestamp:  time.Now(),
		Tool:       tool,
		Action:     "act",
		Result:     r,
		LatencyMS:  10,
	}
}

func TestDefaultExtractFuncDerivesToolSequence(t *testing.T) {
	ep := &episode.Episode{
		ID:      "ep_1",
		Context: episode.TaskContext{Domain: "coding"},
		Steps: []episode.ExecutionStep{
			step(1, "grep", episode.StepSuccess, "ok"),
			step(2, "grep", episode.StepSuccess, "ok"),
			step(3, "edit", episode.StepSuccess, "ok"),
		},
	}

	out, err := DefaultExtractFunc(ep, nil)
	require.NoError(t, err)
	require.Len(t, out.Patterns, 1)
	assert.Equal(t, []string{"grep", "edit"}, out.Patterns[0].ToolSequence.Tools)
	assert.Equal(t, "ep_1", out.Patterns[0].SourceEpisodeID)
}

func TestDefaultExtractFuncDerivesErrorRecovery(t *testing.T) {
	ep := &episode.Episode{
		ID:      "ep_2",
		Context: episode.TaskContext{Domain: "coding"},
		Steps: []episode.ExecutionStep{
			step(1, "build", episode.StepError, "compile failed"),
			step(2, "edit", episode.StepSuccess, "fixed"),
			step(3, "build", episode.StepSuccess, "compiled"),
		},
	}

	out, err := DefaultExtractFunc(ep, nil)
	require.NoError(t, err)
	require.Len(t, out.Patterns, 2) // tool sequence + error recovery
	var recoveries int
	for _, p := range out.Patterns {
		if p.ErrorRecovery != nil {
			recoveries++
			assert.Equal(t, "build", p.ErrorRecovery.Tool)
			assert.Equal(t, "compile failed", p.ErrorRecovery.ErrorSummary)
		}
	}
	assert.Equal(t, 1, recoveries)
}

func TestDefaultExtractFuncNoPatternsOnSingleStep(t *testing.T) {
	ep := &episode.Episode{
		ID:      "ep_3",
		Context: episode.TaskContext{Domain: "coding"},
		Steps:   []episode.ExecutionStep{step(1, "grep", episode.StepSuccess, "ok")},
	}

	out, err := DefaultExtractFunc(ep, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Patterns)
}

func TestDefaultExtractFuncDerivesHeuristicsFromInsights(t *testing.T) {
	ep := &episode.Episode{
		ID:      "ep_4",
		Context: episode.TaskContext{Domain: "coding"},
		Steps: []episode.ExecutionStep{
			step(1, "grep", episode.StepSuccess, "ok"),
			step(2, "edit", episode.StepSuccess, "ok"),
		},
		SalientFeatures: &episode.SalientFeatures{KeyInsights: []string{"prefer grep before edit"}},
	}

	out, err := DefaultExtractFunc(ep, nil)
	require.NoError(t, err)
	require.Len(t, out.Heuristics, 1)
	assert.Equal(t, "prefer grep before edit", out.Heuristics[0].Statement)
	assert.NotEmpty(t, out.Heuristics[0].SourcePatternIDs)
}

func TestDefaultExtractFuncRejectsNilEpisode(t *testing.T) {
	_, err := DefaultExtractFunc(nil, nil)
	assert.Error(t, err)
}

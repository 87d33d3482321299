package quality

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memoryd/engine/internal/episode"
)

// decisionKeys are the parameter object keys ExtractSalientFeatures
// treats as recording an explicit selection among alternatives.
var decisionKeys = []string{"selection", "choice", "selected", "decision"}

// ExtractSalientFeatures derives the structured summary attached to an
// episode that clears the quality gate: critical decisions, tool
// combinations, error-recovery patterns, and key insights pulled from
// the episode's reflection text.
func ExtractSalientFeatures(ep *episode.Episode) *episode.SalientFeatures {
	sf := &episode.SalientFeatures{
		CriticalDecisions: criticalDecisions(ep.Steps),
		ToolCombinations:  toolCombinations(ep.Steps),
		ErrorRecoveries:   errorRecoveryPatterns(ep.Steps),
		KeyInsights:       keyInsights(ep.Reflection),
	}
	return sf
}

// criticalDecisions finds steps whose Parameters object contains one
// of decisionKeys, recording a one-line summary of the choice made.
func criticalDecisions(steps []episode.ExecutionStep) []episode.CriticalDecision {
	var out []episode.CriticalDecision
	for _, s := range steps {
		if len(s.Parameters) == 0 {
			continue
		}
		var params map[string]json.RawMessage
		if err := json.Unmarshal(s.Parameters, &params); err != nil {
			continue
		}
		for _, key := range decisionKeys {
			raw, ok := params[key]
			if !ok {
				continue
			}
			var value string
			if err := json.Unmarshal(raw, &value); err != nil {
				value = string(raw)
			}
			out = append(out, episode.CriticalDecision{
				StepNumber: s.StepNumber,
				Summary:    fmt.Sprintf("%s: %s", key, value),
			})
			break
		}
	}
	return out
}

// toolCombinations returns every maximal contiguous run of two or more
// distinct tools (immediate repeats of the same tool don't start a new
// combination).
func toolCombinations(steps []episode.ExecutionStep) []episode.ToolCombination {
	var out []episode.ToolCombination
	var run []string
	flush := func() {
		if len(run) >= 2 {
			out = append(out, episode.ToolCombination{Tools: append([]string(nil), run...)})
		}
		run = nil
	}
	for _, s := range steps {
		if len(run) > 0 && run[len(run)-1] == s.Tool {
			continue
		}
		run = append(run, s.Tool)
	}
	flush()
	return out
}

// errorRecoveryPatterns pairs each error step with the first later
// step on the same tool that succeeded.
func errorRecoveryPatterns(steps []episode.ExecutionStep) []episode.ErrorRecoveryPattern {
	var out []episode.ErrorRecoveryPattern
	for i, s := range steps {
		if s.Result.Kind != episode.StepError {
			continue
		}
		for j := i + 1; j < len(steps); j++ {
			if steps[j].Tool == s.Tool && steps[j].Result.Kind == episode.StepSuccess {
				out = append(out, episode.ErrorRecoveryPattern{
					Tool:         s.Tool,
					ErrorStep:    s.StepNumber,
					RecoveryStep: steps[j].StepNumber,
				})
				break
			}
		}
	}
	return out
}

// keyInsights splits a reflection into short, non-empty sentence-like
// fragments. The reflection is the free text the engine's
// ReflectionGenerator attaches at complete_episode time; this is a
// deterministic sentence split, not a summarization model.
func keyInsights(reflection *string) []string {
	if reflection == nil {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(*reflection, func(r rune) bool {
		return r == '.' || r == '\n' || r == ';'
	}) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Package quality implements the pre-storage quality gate: a
// deterministic scoring function over a completed episode and the
// salient-feature extractor that runs when an episode clears the
// gate's threshold.
package quality

import (
	"strings"

	"github.com/memoryd/engine/internal/episode"
)

// Weights for the five terms assess_episode combines. They sum to 1.0.
const (
	weightCompleteness  = 0.25
	weightStepDiversity = 0.2
	weightErrorRecovery = 0.2
	weightInfoDensity   = 0.15
	weightTagRichness   = 0.2

	// paramResultSizeCap bounds the information-density term so one
	// unusually large step can't saturate the score on its own.
	paramResultSizeCap = 2048
)

// DefaultThreshold is the minimum assess_episode score an episode must
// clear to be stored with SalientFeatures attached.
const DefaultThreshold = 0.7

// Assessment is the quality gate's verdict: the combined score plus
// its five components, kept around so a rejection can report exactly
// which terms were weak.
type Assessment struct {
	Score             float64
	Completeness      float64
	StepDiversity     float64
	ErrorRecovery     float64
	InformationDensity float64
	TagRichness       float64
}

// Passes reports whether the assessment clears threshold.
func (a Assessment) Passes(threshold float64) bool {
	return a.Score >= threshold
}

// AssessEpisode scores ep against the five weighted terms that make up
// the quality gate. It is a pure function: no I/O, no randomness.
func AssessEpisode(ep *episode.Episode) Assessment {
	a := Assessment{
		Completeness:       completeness(ep),
		StepDiversity:       stepDiversity(ep.Steps),
		ErrorRecovery:       errorRecoveryPresence(ep.Steps),
		InformationDensity: informationDensity(ep.Steps),
		TagRichness:        tagRichness(ep),
	}
	a.Score = weightCompleteness*a.Completeness +
		weightStepDiversity*a.StepDiversity +
		weightErrorRecovery*a.ErrorRecovery +
		weightInfoDensity*a.InformationDensity +
		weightTagRichness*a.TagRichness
	return a
}

// completeness rewards episodes that reached a terminal state with a
// non-trivial verdict and at least one recorded step.
func completeness(ep *episode.Episode) float64 {
	if !ep.Complete() || len(ep.Steps) == 0 {
		return 0
	}
	var score float64 = 0.5
	if strings.TrimSpace(ep.Outcome.Verdict) != "" {
		verdictScore := float64(len(strings.TrimSpace(ep.Outcome.Verdict))) / 200
		if verdictScore > 0.5 {
			verdictScore = 0.5
		}
		score += verdictScore
	}
	if score > 1 {
		score = 1
	}
	return score
}

// stepDiversity is the fraction of distinct tools among all steps.
func stepDiversity(steps []episode.ExecutionStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		seen[s.Tool] = struct{}{}
	}
	return float64(len(seen)) / float64(len(steps))
}

// errorRecoveryPresence rewards episodes that contain at least one
// error step followed later by a success on the same tool.
func errorRecoveryPresence(steps []episode.ExecutionStep) float64 {
	for i, s := range steps {
		if s.Result.Kind != episode.StepError {
			continue
		}
		for j := i + 1; j < len(steps); j++ {
			if steps[j].Tool == s.Tool && steps[j].Result.Kind == episode.StepSuccess {
				return 1
			}
		}
	}
	return 0
}

// informationDensity averages each step's parameter + observation
// size, normalized against paramResultSizeCap so very large payloads
// don't dominate the term.
func informationDensity(steps []episode.ExecutionStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	var total int
	for _, s := range steps {
		total += len(s.Parameters) + len(s.Result.Observation())
	}
	avg := float64(total) / float64(len(steps))
	if avg > paramResultSizeCap {
		avg = paramResultSizeCap
	}
	return avg / paramResultSizeCap
}

// tagRichness rewards episodes with tags and a specific (non-empty)
// domain/language/framework context.
func tagRichness(ep *episode.Episode) float64 {
	var score float64
	if len(ep.Tags) > 0 {
		tagScore := float64(len(ep.Tags)) / 5
		if tagScore > 0.6 {
			tagScore = 0.6
		}
		score += tagScore
	}
	if ep.Context.Domain != "" {
		score += 0.2
	}
	if ep.Context.Language != "" || ep.Context.Framework != "" {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

package engine

import (
	"fmt"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/quality"
)

// computeReward derives a scalar reward signal from the episode's
// terminal outcome and the quality gate's assessment: an outcome
// baseline (success=1, partial=0.5, failure=0) nudged by the quality
// score so two episodes with the same outcome kind but different
// execution quality don't reward identically.
func computeReward(ep *episode.Episode, a quality.Assessment) float64 {
	var base float64
	switch ep.Outcome.Kind {
	case episode.OutcomeSuccess:
		base = 1.0
	case episode.OutcomePartial:
		base = 0.5
	case episode.OutcomeFailure:
		base = 0.0
	}
	reward := base*0.8 + a.Score*0.2
	if reward < 0 {
		reward = 0
	}
	if reward > 1 {
		reward = 1
	}
	return reward
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

package extraction

import (
	"fmt"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/idgen"
	"github.com/memoryd/engine/internal/pattern"
)

// Extracted is the output of one extraction run over a single episode:
// zero or more patterns and heuristics derived from it.
type Extracted struct {
	Patterns   []*pattern.Pattern
	Heuristics []*pattern.Heuristic
}

// ExtractFunc is the pure function a worker applies to a completed
// episode and its recent history to derive patterns/heuristics. It
// must not perform I/O; workers own all storage interaction so the
// function stays trivially testable.
type ExtractFunc func(ep *episode.Episode, recent []*episode.Episode) (Extracted, error)

// DefaultExtractFunc derives two pattern kinds directly from an
// episode's step sequence: a ToolSequence pattern over the full
// ordered, de-duplicated-of-immediate-repeats tool list (when at least
// two distinct tools appear), and one ErrorRecovery pattern per error
// step that is followed later in the same episode by a success on the
// same tool. recent is accepted to satisfy ExtractFunc but unused by
// this baseline implementation — it exists for richer extractors that
// compare an episode against its domain's recent history.
func DefaultExtractFunc(ep *episode.Episode, recent []*episode.Episode) (Extracted, error) {
	if ep == nil {
		return Extracted{}, fmt.Errorf("extraction: nil episode")
	}

	var out Extracted

	if seq := toolSequence(ep.Steps); len(seq) >= 2 {
		id, err := idgen.New(idgen.KindPattern)
		if err != nil {
			return Extracted{}, err
		}
		now := time.Now()
		out.Patterns = append(out.Patterns, &pattern.Pattern{
			ID:              id,
			Kind:            pattern.KindToolSequence,
			Domain:          ep.Context.Domain,
			Description:     fmt.Sprintf("tool sequence: %v", seq),
			SourceEpisodeID: ep.ID,
			OccurrenceCount: 1,
			AvgLatencyMS:    avgLatency(ep.Steps),
			CreatedAt:       now,
			UpdatedAt:       now,
			ToolSequence:    &pattern.ToolSequencePayload{Tools: seq},
		})
	}

	for _, rec := range errorRecoveries(ep.Steps) {
		id, err := idgen.New(idgen.KindPattern)
		if err != nil {
			return Extracted{}, err
		}
		now := time.Now()
		out.Patterns = append(out.Patterns, &pattern.Pattern{
			ID:              id,
			Kind:            pattern.KindErrorRecovery,
			Domain:          ep.Context.Domain,
			Description:     fmt.Sprintf("recovered %s after error", rec.tool),
			SourceEpisodeID: ep.ID,
			OccurrenceCount: 1,
			AvgLatencyMS:    avgLatency(ep.Steps),
			CreatedAt:       now,
			UpdatedAt:       now,
			ErrorRecovery: &pattern.ErrorRecoveryPayload{
				Tool:         rec.tool,
				ErrorSummary: rec.errMessage,
			},
		})
	}

	if ep.SalientFeatures != nil {
		for _, insight := range ep.SalientFeatures.KeyInsights {
			ids := make([]string, 0, len(out.Patterns))
			for _, p := range out.Patterns {
				ids = append(ids, p.ID)
			}
			id, err := idgen.New(idgen.KindHeuristic)
			if err != nil {
				return Extracted{}, err
			}
			out.Heuristics = append(out.Heuristics, &pattern.Heuristic{
				ID:               id,
				Domain:           ep.Context.Domain,
				Statement:        insight,
				SourcePatternIDs: ids,
				CreatedAt:        time.Now(),
			})
		}
	}

	return out, nil
}

// toolSequence returns the ordered tool names from steps, collapsing
// immediate repeats (AAB -> AB) so a pattern reflects distinct tool
// transitions rather than a tool's own retry loop.
func toolSequence(steps []episode.ExecutionStep) []string {
	var seq []string
	for _, s := range steps {
		if len(seq) > 0 && seq[len(seq)-1] == s.Tool {
			continue
		}
		seq = append(seq, s.Tool)
	}
	return seq
}

type recovery struct {
	tool       string
	errMessage string
}

// errorRecoveries finds, for each error step, the first later step on
// the same tool that succeeded.
func errorRecoveries(steps []episode.ExecutionStep) []recovery {
	var out []recovery
	for i, s := range steps {
		if s.Result.Kind != episode.StepError {
			continue
		}
		for j := i + 1; j < len(steps); j++ {
			if steps[j].Tool == s.Tool && steps[j].Result.Kind == episode.StepSuccess {
				out = append(out, recovery{tool: s.Tool, errMessage: s.Result.Message})
				break
			}
		}
	}
	return out
}

func avgLatency(steps []episode.ExecutionStep) int64 {
	if len(steps) == 0 {
		return 0
	}
	var total int64
	for _, s := range steps {
		total += s.LatencyMS
	}
	return total / int64(len(steps))
}

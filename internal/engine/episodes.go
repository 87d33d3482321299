package engine

import (
	"context"
	"time"

	"github.com/memoryd/engine/internal/cache"
	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/extraction"
	"github.com/memoryd/engine/internal/idgen"
	"github.com/memoryd/engine/internal/quality"
)

// StartEpisode validates desc and ctx, mints a fresh episode id, and
// persists a new in-progress Episode. It returns the new id.
func (e *Engine) StartEpisode(ctx context.Context, desc string, tc episode.TaskContext, taskType episode.TaskType) (string, error) {
	if err := episode.ValidateTaskDescription(desc); err != nil {
		return "", err
	}
	if !taskType.Valid() {
		return "", errs.InvalidInput("task_type " + string(taskType) + " is not recognized")
	}
	if tc.Complexity == "" {
		tc.Complexity = episode.ComplexitySimple
	}
	if !tc.Complexity.Valid() {
		return "", errs.InvalidInput("context complexity " + string(tc.Complexity) + " is not recognized")
	}
	tags, err := episode.NormalizeTags(tc.Tags)
	if err != nil {
		return "", err
	}
	tc.Tags = tags

	id, err := idgen.New(idgen.KindEpisode)
	if err != nil {
		return "", errs.Storage("generate episode id", err)
	}

	ep := &episode.Episode{
		ID:              id,
		TaskType:        taskType,
		TaskDescription: desc,
		Context:         tc,
		StartTime:       time.Now().UTC(),
	}

	if err := e.store.PutEpisode(ctx, ep); err != nil {
		return "", err
	}
	if err := e.store.ReplaceEpisodeTags(ctx, id, tags); err != nil {
		return "", err
	}
	e.cache.Invalidate(cache.FamilyEpisode, id)
	e.index.Insert(id, ep.StartTime)
	return id, nil
}

// LogStep validates and appends step to the episode identified by
// episodeID. Appends to a single episode_id are serialized so
// concurrent callers observe write-then-read ordering; different
// episodes proceed fully in parallel.
func (e *Engine) LogStep(ctx context.Context, episodeID string, step episode.ExecutionStep) error {
	if err := episode.ValidateStep(step); err != nil {
		return err
	}
	return e.keyLocks.with(episodeID, func() error {
		ep, err := e.getEpisodeUncached(ctx, episodeID)
		if err != nil {
			return err
		}
		if ep.Complete() {
			return errs.InvalidInput("cannot log a step on a completed episode")
		}
		if err := episode.ValidateNextStepNumber(len(ep.Steps), step.StepNumber); err != nil {
			return err
		}
		ep.Steps = append(ep.Steps, step)
		if err := episode.ValidateSerializedSize(ep); err != nil {
			return err
		}
		if err := e.store.PutEpisode(ctx, ep); err != nil {
			return err
		}
		e.cache.Invalidate(cache.FamilyEpisode, episodeID)
		return nil
	})
}

// CompleteEpisode transitions the episode to its terminal state: it
// sets end_time and outcome, runs the quality gate, computes reward
// and reflection, and either runs pattern extraction synchronously or
// enqueues it (when async extraction is enabled). With async
// extraction enabled, this call is bounded to well under 100ms since
// it returns as soon as the durable write succeeds.
func (e *Engine) CompleteEpisode(ctx context.Context, episodeID string, outcome episode.Outcome) error {
	return e.keyLocks.with(episodeID, func() error {
		ep, err := e.getEpisodeUncached(ctx, episodeID)
		if err != nil {
			return err
		}
		if ep.Complete() {
			return errs.InvalidInput("episode is already complete")
		}

		now := time.Now().UTC()
		ep.EndTime = &now
		ep.Outcome = &outcome

		assessment := quality.AssessEpisode(ep)
		if !assessment.Passes(e.cfg.QualityThreshold) {
			if delErr := e.store.DeleteEpisode(ctx, episodeID); delErr != nil {
				e.log.Error("deleting rejected episode", "episode_id", episodeID, "error", delErr)
			}
			e.index.Remove(episodeID)
			e.cache.Invalidate(cache.FamilyEpisode, episodeID)
			return errs.ValidationFailed(qualityRejectionDetail(assessment, e.cfg.QualityThreshold))
		}
		reward := computeReward(ep, assessment)
		ep.Reward = &reward
		reflection, err := e.reflection.Reflect(ctx, ep, assessment)
		if err != nil {
			return errs.Storage("generate reflection", err)
		}
		ep.Reflection = &reflection
		ep.SalientFeatures = quality.ExtractSalientFeatures(ep)

		if err := episode.ValidateComplete(ep); err != nil {
			return err
		}

		if err := e.store.PutEpisode(ctx, ep); err != nil {
			return err
		}
		e.cache.Invalidate(cache.FamilyEpisode, episodeID)

		if e.queueEnabled {
			e.queue.Enqueue(episodeID)
			return nil
		}
		return e.extractSynchronously(ctx, ep)
	})
}

// GetEpisode reads through the hot cache, falling back to the durable
// store and repopulating the cache on a miss.
func (e *Engine) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	if v, ok := e.cache.Get(cache.FamilyEpisode, id); ok {
		return v.(*episode.Episode).Clone(), nil
	}
	ep, err := e.store.GetEpisode(ctx, id)
	if err != nil {
		return nil, err
	}
	e.cache.Put(cache.FamilyEpisode, id, ep)
	return ep.Clone(), nil
}

// getEpisodeUncached always goes to the durable store, used by
// mutation paths that are about to write back through it anyway and
// would otherwise just invalidate what they read.
func (e *Engine) getEpisodeUncached(ctx context.Context, id string) (*episode.Episode, error) {
	return e.store.GetEpisode(ctx, id)
}

func (e *Engine) extractSynchronously(ctx context.Context, ep *episode.Episode) error {
	recent, err := e.store.QueryEpisodesSince(ctx, time.Now().Add(-e.cfg.Extraction.HistoryWindow), e.cfg.Extraction.HistoryLimit)
	if err != nil {
		return err
	}
	result, err := extraction.DefaultExtractFunc(ep, recent)
	if err != nil {
		return err
	}
	for _, p := range result.Patterns {
		if err := e.store.PutPattern(ctx, p); err != nil {
			return err
		}
		ep.PatternIDs = append(ep.PatternIDs, p.ID)
	}
	for _, h := range result.Heuristics {
		if err := e.store.PutHeuristic(ctx, h); err != nil {
			return err
		}
		ep.HeuristicIDs = append(ep.HeuristicIDs, h.ID)
	}
	if len(result.Patterns) > 0 || len(result.Heuristics) > 0 {
		if err := e.store.PutEpisode(ctx, ep); err != nil {
			return err
		}
		e.cache.Invalidate(cache.FamilyEpisode, ep.ID)
		e.onPatternsExtracted(result.Patterns)
	}
	return nil
}

func qualityRejectionDetail(a quality.Assessment, threshold float64) string {
	return "quality gate rejected episode: score=" + formatScore(a.Score) + " threshold=" + formatScore(threshold)
}

package engine

import (
	"context"

	"github.com/memoryd/engine/internal/cache"
	"github.com/memoryd/engine/internal/effectiveness"
	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/pattern"
)

// GetPattern reads a pattern through the hot cache, falling back to
// the durable store and repopulating the cache on a miss — the same
// read-through contract GetEpisode gives episodes.
func (e *Engine) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	if v, ok := e.cache.Get(cache.FamilyPattern, id); ok {
		p := *v.(*pattern.Pattern)
		return &p, nil
	}
	p, err := e.store.GetPattern(ctx, id)
	if err != nil {
		return nil, err
	}
	e.cache.Put(cache.FamilyPattern, id, p)
	return p, nil
}

// RecordPatternRetrieval marks patternID as surfaced to a caller,
// delegating to the effectiveness tracker and invalidating the hot
// cache entry so the next GetPattern sees the updated scorecard.
func (e *Engine) RecordPatternRetrieval(ctx context.Context, patternID string) error {
	if e.eff == nil {
		return nil
	}
	if err := e.eff.RecordRetrieval(ctx, patternID); err != nil {
		return err
	}
	e.cache.Invalidate(cache.FamilyPattern, patternID)
	return nil
}

// RecordPatternApplication marks patternID as applied inside episodeID
// with the given outcome: it updates the pattern's effectiveness
// scorecard and appends a PatternApplication record to the episode.
func (e *Engine) RecordPatternApplication(ctx context.Context, episodeID, patternID string, atStep int, outcome episode.PatternApplicationOutcome, notes string) error {
	if e.eff != nil {
		if err := e.eff.RecordApplication(ctx, patternID, outcome); err != nil {
			return err
		}
		e.cache.Invalidate(cache.FamilyPattern, patternID)
	}

	return e.keyLocks.with(episodeID, func() error {
		ep, err := e.getEpisodeUncached(ctx, episodeID)
		if err != nil {
			return err
		}
		ep.AppliedPatterns = append(ep.AppliedPatterns, episode.PatternApplication{
			PatternID:     patternID,
			AppliedAtStep: atStep,
			Outcome:       outcome,
			Notes:         notes,
		})
		if err := e.store.PutEpisode(ctx, ep); err != nil {
			return err
		}
		e.cache.Invalidate(cache.FamilyEpisode, episodeID)
		return nil
	})
}

// DecayOldPatterns runs the effectiveness tracker's periodic sweep (at
// most once per effectiveness.Config.DecayIntervalDays) and invalidates
// the cache entries of any removed pattern.
func (e *Engine) DecayOldPatterns(ctx context.Context, domain string) ([]string, error) {
	if e.eff == nil {
		return nil, nil
	}
	removed, err := e.eff.DecayOldPatterns(ctx, domain)
	if err != nil {
		return removed, err
	}
	for _, id := range removed {
		e.cache.Invalidate(cache.FamilyPattern, id)
	}
	return removed, nil
}

// PatternEffectivenessStats returns the effectiveness tracker's
// overall_stats() view for domain ("" for all domains).
func (e *Engine) PatternEffectivenessStats(ctx context.Context, domain string) (effectiveness.OverallStats, error) {
	if e.eff == nil {
		return effectiveness.OverallStats{}, nil
	}
	return e.eff.OverallStats(ctx, domain)
}

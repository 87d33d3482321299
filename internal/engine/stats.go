package engine

import (
	"context"
	"time"
)

// Stats is the (total_episodes, completed_episodes, total_patterns)
// triple returned by GetStats.
type Stats struct {
	TotalEpisodes     int
	CompletedEpisodes int
	TotalPatterns     int
}

// GetStats derives counts from the durable backend: a full scan of
// episodes since the epoch plus an unbounded pattern listing. Callers
// that need this on a hot path should cache the result themselves —
// the engine doesn't maintain running counters for it, matching the
// spec's description of stats as "derived from the durable backend".
func (e *Engine) GetStats(ctx context.Context) (Stats, error) {
	eps, err := e.store.QueryEpisodesSince(ctx, time.Time{}, 0)
	if err != nil {
		return Stats{}, err
	}
	patterns, err := e.store.ListPatterns(ctx, "", 0)
	if err != nil {
		return Stats{}, err
	}

	var completed int
	for _, ep := range eps {
		if ep.Complete() {
			completed++
		}
	}
	return Stats{
		TotalEpisodes:     len(eps),
		CompletedEpisodes: completed,
		TotalPatterns:     len(patterns),
	}, nil
}

// QueryByTimeRange returns episode ids in [start, end) via the
// spatiotemporal index, truncated to limit (0 = unbounded).
func (e *Engine) QueryByTimeRange(start, end time.Time, limit int) []string {
	ids := e.index.QueryRange(start, end)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

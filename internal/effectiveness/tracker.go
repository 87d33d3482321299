// Package effectiveness maintains the usage scorecard for every
// extracted pattern: retrieval and application counts, the
// recency-decayed effectiveness score, and periodic pruning of
// patterns that have stopped earning their keep. Instrumentation is
// wired through go.opentelemetry.io/otel/metric, the same package the
// teacher's compact/haiku.go and storage/dolt register counters and
// histograms against, rather than a bare struct of running totals.
package effectiveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/storage"
)

// activeWindow is how recently a pattern must have been used to count
// toward OverallStats' active-pattern total.
const activeWindow = 30 * 24 * time.Hour

// Config tunes the decay sweep.
type Config struct {
	DecayIntervalDays int
	MinEffectiveness  float64
}

// DefaultConfig returns the engine's baseline decay policy.
func DefaultConfig() Config {
	return Config{DecayIntervalDays: 7, MinEffectiveness: 0.3}
}

// OverallStats summarizes the tracker's view across all patterns.
type OverallStats struct {
	ActivePatterns      int
	TotalPatterns       int
	AverageEffectiveness float64
}

// Tracker records pattern usage and recomputes effectiveness scores
// against a Store. It is safe for concurrent use; DecayOldPatterns
// serializes against itself so overlapping callers don't double-sweep.
type Tracker struct {
	cfg   Config
	store storage.Store

	mu        sync.Mutex
	lastDecay time.Time

	retrievals  metric.Int64Counter
	applications metric.Int64Counter
	decayed     metric.Int64Counter
	scoreHist   metric.Float64Histogram
}

// New builds a Tracker. meter may be nil, in which case metric
// instruments are no-ops, so tests can construct a Tracker without
// wiring a real meter provider.
func New(cfg Config, store storage.Store, meter metric.Meter) (*Tracker, error) {
	t := &Tracker{cfg: cfg, store: store}
	if meter == nil {
		return t, nil
	}

	var err error
	t.retrievals, err = meter.Int64Counter("memoryd.pattern.retrievals",
		metric.WithDescription("pattern retrievals observed by the effectiveness tracker"))
	if err != nil {
		return nil, fmt.Errorf("effectiveness: build retrievals counter: %w", err)
	}
	t.applications, err = meter.Int64Counter("memoryd.pattern.applications",
		metric.WithDescription("pattern applications observed by the effectiveness tracker"))
	if err != nil {
		return nil, fmt.Errorf("effectiveness: build applications counter: %w", err)
	}
	t.decayed, err = meter.Int64Counter("memoryd.pattern.decayed",
		metric.WithDescription("patterns pruned by decay_old_patterns"))
	if err != nil {
		return nil, fmt.Errorf("effectiveness: build decayed counter: %w", err)
	}
	t.scoreHist, err = meter.Float64Histogram("memoryd.pattern.effectiveness_score",
		metric.WithDescription("effectiveness score recomputed on each application"))
	if err != nil {
		return nil, fmt.Errorf("effectiveness: build score histogram: %w", err)
	}
	return t, nil
}

// RecordRetrieval marks patternID as surfaced by a retrieval query,
// bumping RetrievalCount and recomputing its score.
func (t *Tracker) RecordRetrieval(ctx context.Context, patternID string) error {
	p, err := t.store.GetPattern(ctx, patternID)
	if err != nil {
		return err
	}
	now := time.Now()
	p.Effectiveness.RetrievalCount++
	p.Effectiveness.LastRetrievedAt = &now
	p.Effectiveness.RecomputeScore(now)
	p.UpdatedAt = now
	if err := t.store.PutPattern(ctx, p); err != nil {
		return err
	}
	if t.retrievals != nil {
		t.retrievals.Add(ctx, 1)
	}
	t.observeScore(ctx, p.Effectiveness.Score)
	return nil
}

// RecordApplication marks patternID as applied inside an episode with
// the given outcome, bumping ApplicationCount and (for Helped/Hindered
// verdicts) SuccessCount/FailureCount, then recomputing its score.
func (t *Tracker) RecordApplication(ctx context.Context, patternID string, outcome episode.PatternApplicationOutcome) error {
	p, err := t.store.GetPattern(ctx, patternID)
	if err != nil {
		return err
	}
	now := time.Now()
	p.Effectiveness.ApplicationCount++
	switch outcome {
	case episode.ApplicationHelped:
		p.Effectiveness.SuccessCount++
	case episode.ApplicationHindered:
		p.Effectiveness.FailureCount++
	}
	p.Effectiveness.LastAppliedAt = &now
	p.Effectiveness.RecomputeScore(now)
	p.UpdatedAt = now
	if err := t.store.PutPattern(ctx, p); err != nil {
		return err
	}
	if t.applications != nil {
		t.applications.Add(ctx, 1)
	}
	t.observeScore(ctx, p.Effectiveness.Score)
	return nil
}

// DecayOldPatterns refreshes every pattern's score and removes those
// below cfg.MinEffectiveness, returning the removed ids. It is a
// no-op (returns nil, nil) if called again before
// cfg.DecayIntervalDays have elapsed since the last run.
func (t *Tracker) DecayOldPatterns(ctx context.Context, domain string) ([]string, error) {
	t.mu.Lock()
	now := time.Now()
	if !t.lastDecay.IsZero() && now.Sub(t.lastDecay) < time.Duration(t.cfg.DecayIntervalDays)*24*time.Hour {
		t.mu.Unlock()
		return nil, nil
	}
	t.lastDecay = now
	t.mu.Unlock()

	patterns, err := t.store.ListPatterns(ctx, domain, 0)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, p := range patterns {
		p.Effectiveness.RecomputeScore(now)
		p.UpdatedAt = now
		if p.Effectiveness.Score < t.cfg.MinEffectiveness {
			if err := t.store.DeletePattern(ctx, p.ID); err != nil && !errs.IsNotFound(err) {
				return removed, err
			}
			removed = append(removed, p.ID)
			continue
		}
		if err := t.store.PutPattern(ctx, p); err != nil {
			return removed, err
		}
	}
	if t.decayed != nil && len(removed) > 0 {
		t.decayed.Add(ctx, int64(len(removed)))
	}
	return removed, nil
}

// OverallStats summarizes effectiveness across every pattern in
// domain ("" for all domains).
func (t *Tracker) OverallStats(ctx context.Context, domain string) (OverallStats, error) {
	patterns, err := t.store.ListPatterns(ctx, domain, 0)
	if err != nil {
		return OverallStats{}, err
	}

	var stats OverallStats
	stats.TotalPatterns = len(patterns)
	if len(patterns) == 0 {
		return stats, nil
	}

	now := time.Now()
	var scoreSum float64
	for _, p := range patterns {
		scoreSum += p.Effectiveness.Score
		if isActive(p, now) {
			stats.ActivePatterns++
		}
	}
	stats.AverageEffectiveness = scoreSum / float64(len(patterns))
	return stats, nil
}

func (t *Tracker) observeScore(ctx context.Context, score float64) {
	if t.scoreHist != nil {
		t.scoreHist.Record(ctx, score)
	}
}

func isActive(p *pattern.Pattern, now time.Time) bool {
	last := p.Effectiveness.LastAppliedAt
	if last == nil {
		last = p.Effectiveness.LastRetrievedAt
	}
	if last == nil {
		return now.Sub(p.CreatedAt) <= activeWindow
	}
	return now.Sub(*last) <= activeWindow
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryd/engine/internal/effectiveness"
	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/storage/memcache"
)

func newTestEngineWithEffectiveness(t *testing.T) (*Engine, *memcache.Store) {
	t.Helper()
	store := memcache.New()
	eff, err := effectiveness.New(effectiveness.DefaultConfig(), store, nil)
	require.NoError(t, err)
	return New(context.Background(), DefaultConfig(), store, eff), store
}

func TestRecordPatternRetrievalAndApplication(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngineWithEffectiveness(t)

	p := &pattern.Pattern{
		ID: "pat-1", Domain: "ci", Kind: pattern.KindToolSequence,
		ToolSequence: &pattern.ToolSequencePayload{Tools: []string{"build", "test"}},
		CreatedAt:    time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.PutPattern(ctx, p))

	id := startSimpleEpisode(t, e, "apply the pattern")

	require.NoError(t, e.RecordPatternRetrieval(ctx, "pat-1"))
	require.NoError(t, e.RecordPatternApplication(ctx, id, "pat-1", 1, episode.ApplicationHelped, "worked well"))

	got, err := e.GetPattern(ctx, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Effectiveness.RetrievalCount)
	assert.Equal(t, 1, got.Effectiveness.ApplicationCount)
	assert.Equal(t, 1, got.Effectiveness.SuccessCount)

	ep, err := e.GetEpisode(ctx, id)
	require.NoError(t, err)
	require.Len(t, ep.AppliedPatterns, 1)
	assert.Equal(t, "pat-1", ep.AppliedPatterns[0].PatternID)
	assert.Equal(t, episode.ApplicationHelped, ep.AppliedPatterns[0].Outcome)

	stats, err := e.PatternEffectivenessStats(ctx, "ci")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPatterns)
}

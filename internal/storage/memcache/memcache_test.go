package memcache

import (
	"context"
	"testing"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetEpisodeRoundTripsAndIsolatesMutation(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := &episode.Episode{ID: "ep_a", TaskType: episode.TaskDebugging, StartTime: time.Now(), Tags: []string{"x"}}

	require.NoError(t, s.PutEpisode(ctx, e))
	e.Tags[0] = "mutated-after-put"

	got, err := s.GetEpisode(ctx, "ep_a")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Tags[0], "store must not alias the caller's episode")

	got.Tags[0] = "mutated-after-get"
	got2, err := s.GetEpisode(ctx, "ep_a")
	require.NoError(t, err)
	assert.Equal(t, "x", got2.Tags[0], "store must not alias out to callers either")
}

func TestGetEpisodeNotFound(t *testing.T) {
	_, err := New().GetEpisode(context.Background(), "ep_missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQueryEpisodesSinceFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_1", StartTime: base.Add(2 * time.Hour)}))
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_2", StartTime: base.Add(1 * time.Hour)}))
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_3", StartTime: base.Add(-time.Hour)}))

	out, err := s.QueryEpisodesSince(ctx, base, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ep_2", out[0].ID)
	assert.Equal(t, "ep_1", out[1].ID)
}

func TestReplaceEpisodeTagsUpdatesUsageCounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.ReplaceEpisodeTags(ctx, "ep_1", []string{"web-api", "backend"}))
	require.NoError(t, s.ReplaceEpisodeTags(ctx, "ep_2", []string{"web-api"}))

	counts, err := s.TagUsageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["web-api"])
	assert.Equal(t, 1, counts["backend"])

	require.NoError(t, s.ReplaceEpisodeTags(ctx, "ep_1", []string{"backend"}))
	counts, err = s.TagUsageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["web-api"])
	assert.Equal(t, 2, counts["backend"])
}

func TestEmbeddingBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	batch := []*storage.Embedding{
		{ID: "em_1", OwnerID: "ep_1", Vector: []float32{1, 2, 3}, Dim: 3},
		{ID: "em_2", OwnerID: "ep_2", Vector: []float32{4, 5, 6}, Dim: 3},
	}
	require.NoError(t, s.PutEmbeddingsBatch(ctx, batch))

	out, err := s.GetEmbeddingsBatch(ctx, []string{"em_2", "em_1", "em_missing"})
	require.NoError(t, err)
	require.Len(t, out, 2)
}

var _ storage.Store = (*Store)(nil)

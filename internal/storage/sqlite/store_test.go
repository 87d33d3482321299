package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/relationship"
	"github.com/memoryd/engine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	s, err := Open(context.Background(), path, DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEpisodeRoundTripThroughSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	end := time.Now().UTC()
	reward := 0.75
	reflection := "used planner then shell"
	e := &episode.Episode{
		ID:              "ep_1",
		TaskType:        episode.TaskCodeGeneration,
		TaskDescription: "Build REST API",
		Context: episode.TaskContext{
			Domain: "web-api", Language: "go", Complexity: episode.ComplexityModerate, Tags: []string{"api"},
		},
		StartTime: end.Add(-time.Minute),
		EndTime:   &end,
		Steps: []episode.ExecutionStep{
			{StepNumber: 1, Tool: "planner", Action: "plan", Result: episode.StepResult{Kind: episode.StepSuccess, Output: "ok"}},
		},
		Outcome:    &episode.Outcome{Kind: episode.OutcomeSuccess, Verdict: "done", Artifacts: []string{"main.go"}},
		Reward:     &reward,
		Reflection: &reflection,
		PatternIDs: []string{"pt_1"},
		Metadata:   map[string]string{"repo": "acme"},
	}

	require.NoError(t, s.PutEpisode(ctx, e))
	require.NoError(t, s.ReplaceEpisodeTags(ctx, e.ID, []string{"web-api", "go"}))

	got, err := s.GetEpisode(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.TaskDescription, got.TaskDescription)
	assert.Equal(t, e.Context.Domain, got.Context.Domain)
	assert.Len(t, got.Steps, 1)
	assert.Equal(t, "ok", got.Steps[0].Result.Output)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, episode.OutcomeSuccess, got.Outcome.Kind)
	assert.Equal(t, []string{"main.go"}, got.Outcome.Artifacts)
	require.NotNil(t, got.Reward)
	assert.InDelta(t, reward, *got.Reward, 1e-9)
	assert.Equal(t, []string{"go", "web-api"}, got.Tags)
	assert.Equal(t, "acme", got.Metadata["repo"])

	counts, err := s.TagUsageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["web-api"])

	_, err = s.GetEpisode(ctx, "ep_missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQueryEpisodesSinceOrdersByStartTime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_late", StartTime: base.Add(2 * time.Hour), Context: episode.TaskContext{Domain: "d"}}))
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_early", StartTime: base.Add(time.Hour), Context: episode.TaskContext{Domain: "d"}}))
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_too_old", StartTime: base.Add(-time.Hour), Context: episode.TaskContext{Domain: "d"}}))

	out, err := s.QueryEpisodesSince(ctx, base, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ep_early", out[0].ID)
	assert.Equal(t, "ep_late", out[1].ID)
}

func TestPatternRoundTripThroughSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p := &pattern.Pattern{
		ID: "pt_1", Kind: pattern.KindToolSequence, Domain: "web-api",
		ToolSequence: &pattern.ToolSequencePayload{Tools: []string{"planner", "shell"}},
		CreatedAt:    time.Now(), UpdatedAt: time.Now(),
		Effectiveness: pattern.Effectiveness{RetrievalCount: 3, ApplicationCount: 2, SuccessCount: 2},
	}
	require.NoError(t, s.PutPattern(ctx, p))

	got, err := s.GetPattern(ctx, "pt_1")
	require.NoError(t, err)
	assert.Equal(t, pattern.KindToolSequence, got.Kind)
	require.NotNil(t, got.ToolSequence)
	assert.Equal(t, []string{"planner", "shell"}, got.ToolSequence.Tools)
	assert.Equal(t, 3, got.Effectiveness.RetrievalCount)

	list, err := s.ListPatterns(ctx, "web-api", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEmbeddingRoundTripThroughSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	e := &storage.Embedding{ID: "em_1", OwnerID: "ep_1", Vector: []float32{0.1, 0.2, 0.3}, Dim: 3, Model: "local"}
	require.NoError(t, s.PutEmbedding(ctx, e))

	got, err := s.GetEmbedding(ctx, "em_1")
	require.NoError(t, err)
	require.Len(t, got.Vector, 3)
	assert.InDelta(t, 0.2, got.Vector[1], 1e-6)
}

func TestRelationshipInsertAndListThroughSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_a", Context: episode.TaskContext{Domain: "d"}}))
	require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: "ep_b", Context: episode.TaskContext{Domain: "d"}}))

	id, err := storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_a", To: "ep_b", Type: relationship.TypeDependsOn})
	require.NoError(t, err)

	out, err := s.ListRelationships(ctx, "ep_a", relationship.DirectionOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].ID)

	_, err = storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_b", To: "ep_a", Type: relationship.TypeDependsOn})
	assert.ErrorIs(t, err, errs.ErrValidationFailed, "would create a cycle")
}

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/relationship"
)

func startSimpleEpisode(t *testing.T, e *Engine, desc string) string {
	t.Helper()
	id, err := e.StartEpisode(context.Background(), desc, episode.TaskContext{Complexity: episode.ComplexitySimple}, episode.TaskOther)
	require.NoError(t, err)
	return id
}

func TestAddEpisodeRelationshipRejectsCycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	a := startSimpleEpisode(t, e, "task a")
	b := startSimpleEpisode(t, e, "task b")
	c := startSimpleEpisode(t, e, "task c")

	_, err := e.AddEpisodeRelationship(ctx, a, b, relationship.TypeDependsOn, "a needs b", nil)
	require.NoError(t, err)
	_, err = e.AddEpisodeRelationship(ctx, b, c, relationship.TypeDependsOn, "b needs c", nil)
	require.NoError(t, err)

	_, err = e.AddEpisodeRelationship(ctx, c, a, relationship.TypeDependsOn, "would close the loop", nil)
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}

func TestAddEpisodeRelationshipRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	a := startSimpleEpisode(t, e, "task a")
	b := startSimpleEpisode(t, e, "task b")

	_, err := e.AddEpisodeRelationship(ctx, a, b, relationship.TypeRelatedTo, "first", nil)
	require.NoError(t, err)
	_, err = e.AddEpisodeRelationship(ctx, a, b, relationship.TypeRelatedTo, "duplicate", nil)
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}

func TestRemoveEpisodeRelationshipIsNoOpWhenMissing(t *testing.T) {
	e := newTestEngine(t)
	err := e.RemoveEpisodeRelationship(context.Background(), "does-not-exist")
	assert.NoError(t, err)
}

func TestTopologicalSortOrdersDependencies(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	a := startSimpleEpisode(t, e, "task a")
	b := startSimpleEpisode(t, e, "task b")
	c := startSimpleEpisode(t, e, "task c")

	_, err := e.AddEpisodeRelationship(ctx, a, b, relationship.TypeDependsOn, "", nil)
	require.NoError(t, err)
	_, err = e.AddEpisodeRelationship(ctx, b, c, relationship.TypeDependsOn, "", nil)
	require.NoError(t, err)

	order, cyclic, err := e.TopologicalSort(ctx, []string{a, b, c})
	require.NoError(t, err)
	assert.False(t, cyclic)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[a], pos[b])
	assert.Less(t, pos[b], pos[c])
}

func TestBuildRelationshipGraphExportShape(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	a := startSimpleEpisode(t, e, "task a")
	b := startSimpleEpisode(t, e, "task b")
	_, err := e.AddEpisodeRelationship(ctx, a, b, relationship.TypeBlocks, "blocked", nil)
	require.NoError(t, err)

	g, err := e.BuildRelationshipGraph(ctx, a, 2)
	require.NoError(t, err)

	doc, err := g.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"node_count":2`)
	assert.Contains(t, string(doc), `"edge_count":1`)
	assert.Contains(t, string(doc), `"type":"blocks"`)
	assert.NotContains(t, string(doc), "relationship_id")
}

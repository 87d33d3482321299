package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/relationship"
	"github.com/memoryd/engine/internal/storage"
	"github.com/memoryd/engine/internal/storage/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEpisodes(t *testing.T, s storage.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		require.NoError(t, s.PutEpisode(ctx, &episode.Episode{ID: id, StartTime: time.Now()}))
	}
}

func TestInsertRelationshipRejectsMissingEndpoint(t *testing.T) {
	s := memcache.New()
	seedEpisodes(t, s, "ep_a")
	_, err := storage.InsertRelationship(context.Background(), s, relationship.Relationship{From: "ep_a", To: "ep_missing", Type: relationship.TypeFollows})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestInsertRelationshipRejectsDuplicate(t *testing.T) {
	s := memcache.New()
	seedEpisodes(t, s, "ep_a", "ep_b")
	ctx := context.Background()
	_, err := storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_a", To: "ep_b", Type: relationship.TypeRelatedTo})
	require.NoError(t, err)

	_, err = storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_a", To: "ep_b", Type: relationship.TypeRelatedTo})
	assert.ErrorIs(t, err, errs.ErrValidationFailed)
}

func TestInsertRelationshipRejectsCycle(t *testing.T) {
	s := memcache.New()
	seedEpisodes(t, s, "ep_a", "ep_b", "ep_c")
	ctx := context.Background()

	_, err := storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_a", To: "ep_b", Type: relationship.TypeDependsOn})
	require.NoError(t, err)
	_, err = storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_b", To: "ep_c", Type: relationship.TypeDependsOn})
	require.NoError(t, err)

	_, err = storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_c", To: "ep_a", Type: relationship.TypeDependsOn})
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	all, err := s.ListAllRelationships(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "the rejected edge must not be persisted")
}

func TestInsertRelationshipAllowsNonAcyclicCycle(t *testing.T) {
	s := memcache.New()
	seedEpisodes(t, s, "ep_a", "ep_b")
	ctx := context.Background()

	_, err := storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_a", To: "ep_b", Type: relationship.TypeRelatedTo})
	require.NoError(t, err)
	_, err = storage.InsertRelationship(ctx, s, relationship.Relationship{From: "ep_b", To: "ep_a", Type: relationship.TypeRelatedTo})
	assert.NoError(t, err, "RelatedTo is not an acyclic type")
}

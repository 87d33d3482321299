package engine

import (
	"context"

	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/relationship"
	"github.com/memoryd/engine/internal/storage"
)

// AddEpisodeRelationship validates and persists a new typed edge
// between two existing episodes, rejecting duplicates and (for
// acyclic types) edges that would close a cycle.
func (e *Engine) AddEpisodeRelationship(ctx context.Context, from, to string, t relationship.Type, reason string, priority *int) (string, error) {
	r := relationship.Relationship{From: from, To: to, Type: t, Reason: reason, Priority: priority}
	return storage.InsertRelationship(ctx, e.store, r)
}

// RemoveEpisodeRelationship deletes a relationship by id. Removing a
// relationship that doesn't exist is a no-op.
func (e *Engine) RemoveEpisodeRelationship(ctx context.Context, relID string) error {
	if err := e.store.DeleteRelationship(ctx, relID); err != nil && !errs.IsNotFound(err) {
		return err
	}
	return nil
}

// GetEpisodeRelationships returns the edges touching episodeID in dir.
func (e *Engine) GetEpisodeRelationships(ctx context.Context, episodeID string, dir relationship.Direction) ([]relationship.Relationship, error) {
	return e.store.ListRelationships(ctx, episodeID, dir)
}

// BuildRelationshipGraph runs a bounded BFS from root over both edge
// directions and returns the resulting subgraph, ready for ToDOT/ToJSON
// export.
func (e *Engine) BuildRelationshipGraph(ctx context.Context, root string, maxDepth int) (*relationship.Graph, error) {
	all, err := e.store.ListAllRelationships(ctx)
	if err != nil {
		return nil, err
	}
	return relationship.New(all).BuildSubgraph(root, maxDepth), nil
}

// TopologicalSort orders ids by the acyclic-type edges among them,
// reporting cyclic=true if no full ordering exists.
func (e *Engine) TopologicalSort(ctx context.Context, ids []string) (order []string, cyclic bool, err error) {
	all, err := e.store.ListAllRelationships(ctx)
	if err != nil {
		return nil, false, err
	}
	order, cyclic = relationship.TopologicalSort(ids, all)
	return order, cyclic, nil
}

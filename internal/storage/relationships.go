package storage

import (
	"context"
	"time"

	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/idgen"
	"github.com/memoryd/engine/internal/relationship"
)

// InsertRelationship runs the endpoint-existence, duplicate, and
// cycle checks for adding an episode relationship and, if they all
// pass, assigns an id and persists the edge through s. It is a
// backend-agnostic helper over the Store contract rather than a method
// either backend must reimplement: a lookup, a cycle check, then an
// insert against whatever concrete store is wired in.
func InsertRelationship(ctx context.Context, s Store, r relationship.Relationship) (string, error) {
	if err := relationship.ValidateNew(r); err != nil {
		return "", err
	}

	if _, err := s.GetEpisode(ctx, r.From); err != nil {
		return "", err
	}
	if _, err := s.GetEpisode(ctx, r.To); err != nil {
		return "", err
	}

	existing, err := s.ListAllRelationships(ctx)
	if err != nil {
		return "", err
	}
	want := r.Key()
	for _, e := range existing {
		if e.Key() == want {
			return "", errs.ValidationFailed("relationship " + want.From + "->" + want.To + " of this type already exists")
		}
	}

	if r.Type.Acyclic() {
		g := relationship.New(existing)
		if g.WouldCreateCycle(r.From, r.To, r.Type) {
			return "", errs.ValidationFailed("relationship would create a cycle in the " + string(r.Type) + " graph")
		}
	}

	id, err := idgen.New(idgen.KindRelationship)
	if err != nil {
		return "", errs.Storage("generate relationship id", err)
	}
	r.ID = id
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	if err := s.PutRelationship(ctx, r); err != nil {
		return "", err
	}
	return id, nil
}

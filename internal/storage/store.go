// Package storage defines the uniform contract both the durable
// backend (internal/storage/sqlite) and the in-process hot-cache
// backend (internal/storage/memcache) implement, so callers can swap
// one for the other behind a single Store interface.
package storage

import (
	"context"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/relationship"
)

// Embedding is a stored vector alongside the episode or pattern it
// represents. The data model only gestures at embeddings ("stored
// alongside the episode"); this shape is the concrete record both
// backends persist and the dual-tier contract exercises.
type Embedding struct {
	ID        string    `json:"embedding_id"`
	OwnerID   string    `json:"owner_id"` // episode_id or pattern_id
	Vector    []float32 `json:"vector"`
	Dim       int       `json:"dim"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the storage contract the engine composes read-through /
// write-through over. Every method that can fail returns an error from
// the internal/errs taxonomy (NotFound, Storage, Conflict, ...).
type Store interface {
	// Episodes.
	PutEpisode(ctx context.Context, e *episode.Episode) error
	GetEpisode(ctx context.Context, id string) (*episode.Episode, error)
	DeleteEpisode(ctx context.Context, id string) error
	QueryEpisodesSince(ctx context.Context, since time.Time, limit int) ([]*episode.Episode, error)
	QueryEpisodesByMetadata(ctx context.Context, key, value string, limit int) ([]*episode.Episode, error)

	// Patterns.
	PutPattern(ctx context.Context, p *pattern.Pattern) error
	GetPattern(ctx context.Context, id string) (*pattern.Pattern, error)
	DeletePattern(ctx context.Context, id string) error
	ListPatterns(ctx context.Context, domain string, limit int) ([]*pattern.Pattern, error)

	// Heuristics.
	PutHeuristic(ctx context.Context, h *pattern.Heuristic) error
	GetHeuristic(ctx context.Context, id string) (*pattern.Heuristic, error)
	DeleteHeuristic(ctx context.Context, id string) error

	// Embeddings, single and batch.
	PutEmbedding(ctx context.Context, e *Embedding) error
	GetEmbedding(ctx context.Context, id string) (*Embedding, error)
	DeleteEmbedding(ctx context.Context, id string) error
	PutEmbeddingsBatch(ctx context.Context, es []*Embedding) error
	GetEmbeddingsBatch(ctx context.Context, ids []string) ([]*Embedding, error)

	// Relationships.
	PutRelationship(ctx context.Context, r relationship.Relationship) error
	GetRelationship(ctx context.Context, id string) (*relationship.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error
	ListRelationships(ctx context.Context, episodeID string, dir relationship.Direction) ([]relationship.Relationship, error)
	ListAllRelationships(ctx context.Context) ([]relationship.Relationship, error)

	// Tags.
	ReplaceEpisodeTags(ctx context.Context, episodeID string, tags []string) error
	TagUsageCounts(ctx context.Context) (map[string]int, error)

	// Close releases any held resources (connection pool, background
	// cleaner). It is safe to call more than once.
	Close() error
}

// Package memcache is a pure in-process implementation of
// storage.Store: plain entity maps guarded by a single sync.RWMutex
// rather than sync.Map. It is separate from internal/cache's hot tier
// and is used in tests that need a real Store without a SQLite file.
package memcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/relationship"
	"github.com/memoryd/engine/internal/storage"
)

// Store is an in-memory, goroutine-safe storage.Store.
type Store struct {
	mu sync.RWMutex

	episodes      map[string]*episode.Episode
	patterns      map[string]*pattern.Pattern
	heuristics    map[string]*pattern.Heuristic
	embeddings    map[string]*storage.Embedding
	relationships map[string]relationship.Relationship
	tags          map[string][]string // episode id -> tags
	tagUsage      map[string]int      // tag -> count of episodes carrying it
}

// New returns an empty memcache.Store.
func New() *Store {
	return &Store{
		episodes:      make(map[string]*episode.Episode),
		patterns:      make(map[string]*pattern.Pattern),
		heuristics:    make(map[string]*pattern.Heuristic),
		embeddings:    make(map[string]*storage.Embedding),
		relationships: make(map[string]relationship.Relationship),
		tags:          make(map[string][]string),
		tagUsage:      make(map[string]int),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) PutEpisode(_ context.Context, e *episode.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[e.ID] = e.Clone()
	return nil
}

func (s *Store) GetEpisode(_ context.Context, id string) (*episode.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.episodes[id]
	if !ok {
		return nil, errs.NotFound("episode", id)
	}
	return e.Clone(), nil
}

func (s *Store) DeleteEpisode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.episodes, id)
	delete(s.tags, id)
	return nil
}

func (s *Store) QueryEpisodesSince(_ context.Context, since time.Time, limit int) ([]*episode.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*episode.Episode
	for _, e := range s.episodes {
		if e.StartTime.After(since) || e.StartTime.Equal(since) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) QueryEpisodesByMetadata(_ context.Context, key, value string, limit int) ([]*episode.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*episode.Episode
	for _, e := range s.episodes {
		if e.Metadata != nil && e.Metadata[key] == value {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PutPattern(_ context.Context, p *pattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (s *Store) GetPattern(_ context.Context, id string) (*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, errs.NotFound("pattern", id)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeletePattern(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, id)
	return nil
}

func (s *Store) ListPatterns(_ context.Context, domain string, limit int) ([]*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pattern.Pattern
	for _, p := range s.patterns {
		if domain == "" || p.Domain == domain {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PutHeuristic(_ context.Context, h *pattern.Heuristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.heuristics[h.ID] = &cp
	return nil
}

func (s *Store) GetHeuristic(_ context.Context, id string) (*pattern.Heuristic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.heuristics[id]
	if !ok {
		return nil, errs.NotFound("heuristic", id)
	}
	cp := *h
	return &cp, nil
}

func (s *Store) DeleteHeuristic(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.heuristics, id)
	return nil
}

func (s *Store) PutEmbedding(_ context.Context, e *storage.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.Vector = append([]float32(nil), e.Vector...)
	s.embeddings[e.ID] = &cp
	return nil
}

func (s *Store) GetEmbedding(_ context.Context, id string) (*storage.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.embeddings[id]
	if !ok {
		return nil, errs.NotFound("embedding", id)
	}
	cp := *e
	cp.Vector = append([]float32(nil), e.Vector...)
	return &cp, nil
}

func (s *Store) DeleteEmbedding(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.embeddings, id)
	return nil
}

func (s *Store) PutEmbeddingsBatch(ctx context.Context, es []*storage.Embedding) error {
	for _, e := range es {
		if err := s.PutEmbedding(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetEmbeddingsBatch(_ context.Context, ids []string) ([]*storage.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storage.Embedding, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.embeddings[id]; ok {
			cp := *e
			cp.Vector = append([]float32(nil), e.Vector...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) PutRelationship(_ context.Context, r relationship.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[r.ID] = r
	return nil
}

func (s *Store) GetRelationship(_ context.Context, id string) (*relationship.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relationships[id]
	if !ok {
		return nil, errs.NotFound("relationship", id)
	}
	return &r, nil
}

func (s *Store) DeleteRelationship(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relationships, id)
	return nil
}

func (s *Store) ListRelationships(_ context.Context, episodeID string, dir relationship.Direction) ([]relationship.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []relationship.Relationship
	for _, r := range s.relationships {
		matchOut := dir == relationship.DirectionOut || dir == relationship.DirectionBoth
		matchIn := dir == relationship.DirectionIn || dir == relationship.DirectionBoth
		if (matchOut && r.From == episodeID) || (matchIn && r.To == episodeID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAllRelationships(_ context.Context) ([]relationship.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]relationship.Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReplaceEpisodeTags(_ context.Context, episodeID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, old := range s.tags[episodeID] {
		s.tagUsage[old]--
		if s.tagUsage[old] <= 0 {
			delete(s.tagUsage, old)
		}
	}
	s.tags[episodeID] = append([]string(nil), tags...)
	for _, t := range tags {
		s.tagUsage[t]++
	}
	return nil
}

func (s *Store) TagUsageCounts(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.tagUsage))
	for k, v := range s.tagUsage {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// Len reports the number of stored episodes, for tests and stats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.episodes)
}

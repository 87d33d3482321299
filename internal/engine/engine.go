// Package engine composes the storage contract, hot cache,
// spatiotemporal index, relationship graph, extraction pipeline, and
// quality gate into the orchestrator behind episode lifecycle,
// retrieval, relationships, and stats. It owns no storage of its own —
// every durable fact lives in the storage.Store it is constructed
// with, rather than reimplementing persistence itself.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/memoryd/engine/internal/cache"
	"github.com/memoryd/engine/internal/effectiveness"
	"github.com/memoryd/engine/internal/extraction"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/quality"
	"github.com/memoryd/engine/internal/spatiotemporal"
	"github.com/memoryd/engine/internal/storage"
)

// Config tunes the orchestrator's policy knobs. New applies no
// defaults of its own: zero-value fields are used as they are, and
// DefaultConfig returns the baseline values.
type Config struct {
	QualityThreshold float64
	RelevanceWeights RelevanceWeights
	Cache            cache.Config
	Effectiveness    effectiveness.Config
	Extraction       extraction.Config
}

// DefaultConfig returns the engine's baseline policy.
func DefaultConfig() Config {
	return Config{
		QualityThreshold: quality.DefaultThreshold,
		RelevanceWeights: DefaultRelevanceWeights(),
		Cache:            cache.DefaultConfig(),
		Effectiveness:    effectiveness.DefaultConfig(),
		Extraction:       extraction.DefaultConfig(),
	}
}

// Engine is the memory engine orchestrator. It is constructed once per
// process and shared by handle; it holds no process-wide singletons.
type Engine struct {
	cfg   Config
	store storage.Store
	cache *cache.Cache
	index *spatiotemporal.Index
	eff   *effectiveness.Tracker
	log   *slog.Logger

	embedder   Embedder
	reflection ReflectionGenerator

	queue        *extraction.Queue
	queueEnabled bool

	keyLocks keyMutex
}

// Option configures optional Engine behavior at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's structured logger (default:
// slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithEmbedder overrides the Embedder used by relevance ranking's
// cosine term (default: NewLocalEmbedder()).
func WithEmbedder(emb Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithReflectionGenerator overrides the ReflectionGenerator invoked
// from CompleteEpisode (default: DefaultReflectionGenerator).
func WithReflectionGenerator(g ReflectionGenerator) Option {
	return func(e *Engine) { e.reflection = g }
}

// New builds an Engine over store. eff's meter may be nil (see
// effectiveness.New); the spatiotemporal index starts empty and is
// populated by RebuildIndex or as episodes are stored.
func New(ctx context.Context, cfg Config, store storage.Store, eff *effectiveness.Tracker, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		store:      store,
		cache:      cache.New(cfg.Cache),
		index:      spatiotemporal.New(),
		eff:        eff,
		log:        slog.Default(),
		embedder:   NewLocalEmbedder(),
		reflection: DefaultReflectionGenerator{},
		keyLocks:   newKeyMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RebuildIndex populates the spatiotemporal index from every episode
// currently in the durable store. Callers run this once at startup
// against a store that already holds episodes from a prior process.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	eps, err := e.store.QueryEpisodesSince(ctx, time.Time{}, 0)
	if err != nil {
		return err
	}
	for _, ep := range eps {
		e.index.Insert(ep.ID, ep.StartTime)
	}
	return nil
}

// EnableAsyncExtraction attaches an extraction queue built from cfg to
// the engine. CompleteEpisode enqueues completed episodes instead of
// extracting patterns synchronously once this has been called.
func (e *Engine) EnableAsyncExtraction(cfg extraction.Config) {
	e.cfg.Extraction = cfg
	e.queue = extraction.New(cfg, e.store,
		extraction.WithLogger(e.log),
		extraction.WithOnExtracted(e.onPatternsExtracted),
	)
	e.queueEnabled = true
}

// StartWorkers starts the extraction queue's worker pool. It is a
// no-op if async extraction was never enabled.
func (e *Engine) StartWorkers(ctx context.Context) {
	if e.queue == nil {
		return
	}
	e.queue.Start(ctx)
}

// Shutdown waits up to deadline for the extraction workers (if any) to
// exit, and closes the hot cache's background cleaner and the durable
// store. The workers exit when the context given to StartWorkers is
// cancelled; episodes still queued at that point are not extracted.
func (e *Engine) Shutdown(ctx context.Context, deadline time.Duration) error {
	if e.queue != nil {
		e.queue.Shutdown(ctx, deadline)
	}
	e.cache.Close()
	return e.store.Close()
}

// GetQueueStats returns the extraction pipeline's counters. ok is
// false if async extraction was never enabled.
func (e *Engine) GetQueueStats() (extraction.Stats, bool) {
	if e.queue == nil {
		return extraction.Stats{}, false
	}
	return e.queue.Stats(), true
}

// onPatternsExtracted logs freshly extracted patterns. It does not
// record retrievals/applications itself — those are driven by
// RetrieveRelevantContext and explicit application feedback, not by
// the fact of extraction.
func (e *Engine) onPatternsExtracted(patterns []*pattern.Pattern) {
	for _, p := range patterns {
		e.log.Debug("pattern extracted", "pattern_id", p.ID, "kind", p.Kind, "domain", p.Domain)
	}
}

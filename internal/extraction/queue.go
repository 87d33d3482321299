// Package extraction implements the async pattern-extraction pipeline:
// a bounded FIFO queue of completed-episode ids drained by a pool of
// worker goroutines: a buffered work channel, N worker goroutines, a
// sync.WaitGroup, and cooperative ctx.Err() checks between units of
// work rather than a third-party worker-pool library.
package extraction

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/storage"
)

// Config tunes the queue's capacity and worker pool.
type Config struct {
	WorkerCount      int
	MaxQueueSize     int
	PollInterval     time.Duration
	HistoryWindow    time.Duration // how far back "recent" episodes are drawn from
	HistoryLimit     int
}

// DefaultConfig returns the engine's baseline extraction pipeline tuning.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   2,
		MaxQueueSize:  100,
		PollInterval:  100 * time.Millisecond,
		HistoryWindow: 24 * time.Hour,
		HistoryLimit:  20,
	}
}

// Stats are the observable counters for the pipeline. For any
// finite workload, once workers have drained, TotalEnqueued ==
// TotalProcessed+TotalFailed and CurrentQueueSize == 0.
type Stats struct {
	TotalEnqueued    int64
	TotalProcessed   int64
	TotalFailed      int64
	TotalDropped     int64
	CurrentQueueSize int64
}

// Queue is the bounded extraction pipeline. The zero value is not
// usable; construct with New.
type Queue struct {
	cfg     Config
	store   storage.Store
	extract ExtractFunc
	log     *slog.Logger

	ch chan string
	wg sync.WaitGroup

	totalEnqueued  atomic.Int64
	totalProcessed atomic.Int64
	totalFailed    atomic.Int64
	totalDropped   atomic.Int64

	// onExtracted, if set, is invoked after a successful extraction with
	// the patterns just written, letting a caller such as the engine
	// observe new patterns without this package importing it.
	onExtracted func(patterns []*pattern.Pattern)
}

// Option configures optional Queue behavior.
type Option func(*Queue)

// WithExtractFunc overrides the default extraction function.
func WithExtractFunc(fn ExtractFunc) Option {
	return func(q *Queue) { q.extract = fn }
}

// WithLogger overrides the queue's structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithOnExtracted registers a callback invoked after each episode's
// patterns are durably written.
func WithOnExtracted(fn func(patterns []*pattern.Pattern)) Option {
	return func(q *Queue) { q.onExtracted = fn }
}

// New builds a Queue bound to store. Workers are not started until
// Start is called.
func New(cfg Config, store storage.Store, opts ...Option) *Queue {
	q := &Queue{
		cfg:     cfg,
		store:   store,
		extract: DefaultExtractFunc,
		log:     slog.Default(),
		ch:      make(chan string, cfg.MaxQueueSize),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start spawns cfg.WorkerCount worker goroutines. Workers run until ctx
// is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.WorkerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Enqueue submits episodeID for extraction. It reports false without
// blocking if the queue is at capacity — completion of the episode is
// never blocked by a full extraction queue; the caller already
// durably stored it and only pattern derivation is skipped.
func (q *Queue) Enqueue(episodeID string) bool {
	select {
	case q.ch <- episodeID:
		q.totalEnqueued.Add(1)
		return true
	default:
		q.totalDropped.Add(1)
		q.log.Warn("extraction queue at capacity, dropping episode", "episode_id", episodeID)
		return false
	}
}

// Shutdown waits for the worker goroutines to exit, up to deadline or
// until ctx is done, whichever comes first. Workers exit only when the
// context passed to Start is cancelled: Shutdown neither closes the
// queue nor stops the workers itself, and ids still queued when the
// workers exit are left unprocessed.
func (q *Queue) Shutdown(ctx context.Context, deadline time.Duration) {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		q.log.Warn("extraction queue shutdown deadline exceeded, forcing return")
	case <-ctx.Done():
	}
}

// Stats returns a snapshot of the pipeline's counters.
func (q *Queue) Stats() Stats {
	return Stats{
		TotalEnqueued:    q.totalEnqueued.Load(),
		TotalProcessed:   q.totalProcessed.Load(),
		TotalFailed:      q.totalFailed.Load(),
		TotalDropped:     q.totalDropped.Load(),
		CurrentQueueSize: int64(len(q.ch)),
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case episodeID, ok := <-q.ch:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if err := q.process(ctx, episodeID); err != nil {
				q.totalFailed.Add(1)
				q.log.Error("extraction failed", "worker", id, "episode_id", episodeID, "error", err)
				continue
			}
			q.totalProcessed.Add(1)
		}
	}
}

func (q *Queue) process(ctx context.Context, episodeID string) error {
	ep, err := q.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}

	recent, err := q.store.QueryEpisodesSince(ctx, time.Now().Add(-q.cfg.HistoryWindow), q.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	recent = sameDomain(recent, ep.Context.Domain, ep.ID)

	result, err := q.extract(ep, recent)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	for _, p := range result.Patterns {
		if err := q.store.PutPattern(ctx, p); err != nil {
			return err
		}
		ep.PatternIDs = append(ep.PatternIDs, p.ID)
	}
	for _, h := range result.Heuristics {
		if err := q.store.PutHeuristic(ctx, h); err != nil {
			return err
		}
		ep.HeuristicIDs = append(ep.HeuristicIDs, h.ID)
	}

	if len(result.Patterns) > 0 || len(result.Heuristics) > 0 {
		if err := q.store.PutEpisode(ctx, ep); err != nil {
			return err
		}
	}

	if q.onExtracted != nil && len(result.Patterns) > 0 {
		q.onExtracted(result.Patterns)
	}
	return nil
}

func sameDomain(eps []*episode.Episode, domain, excludeID string) []*episode.Episode {
	var out []*episode.Episode
	for _, e := range eps {
		if e.ID == excludeID {
			continue
		}
		if e.Context.Domain == domain {
			out = append(out, e)
		}
	}
	return out
}

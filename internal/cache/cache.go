// Package cache implements the hot-cache tier: a concurrent, bounded,
// per-entity-family cache whose entries' TTL adapts toward each
// entry's observed access rhythm. Per-family maps are guarded by
// sync.RWMutex rather than sync.Map, since every family sees moderate,
// roughly balanced read/write contention rather than a read-mostly
// workload.
package cache

import (
	"sync"
	"time"
)

// Family names the entity kind an entry belongs to, so stats and
// capacity limits are tracked per family rather than globally.
type Family string

const (
	FamilyEpisode   Family = "episode"
	FamilyPattern   Family = "pattern"
	FamilyHeuristic Family = "heuristic"
)

// Config tunes the adaptive-TTL policy and capacity.
type Config struct {
	MinTTL          time.Duration
	MaxTTL          time.Duration
	HotThreshold    time.Duration // inter-access gap below this is "hot"
	ColdThreshold   time.Duration // inter-access gap above this is "cold"
	AdaptationRate  float64       // EMA smoothing factor in (0,1]
	CleanupInterval time.Duration
	CapacityPerFamily int
}

// DefaultConfig returns the engine's baseline adaptive-TTL policy.
func DefaultConfig() Config {
	return Config{
		MinTTL:            60 * time.Second,
		MaxTTL:            time.Hour,
		HotThreshold:      10 * time.Second,
		ColdThreshold:     5 * time.Minute,
		AdaptationRate:    0.3,
		CleanupInterval:   30 * time.Second,
		CapacityPerFamily: 10_000,
	}
}

type entry struct {
	value      interface{}
	expiresAt  time.Time
	lastAccess time.Time
	emaGap     time.Duration
	ttl        time.Duration
}

// Stats is the per-family counters the cache exposes.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Size        int
}

type familyShard struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // approximate LRU order for capacity eviction
	stats   Stats
}

// Cache is the hot-cache tier: one shard per Family, each independently
// locked so a reader in one family never blocks a writer in another.
type Cache struct {
	cfg    Config
	mu     sync.RWMutex
	shards map[Family]*familyShard

	stopCleaner chan struct{}
	cleanerOnce sync.Once
}

// New returns a Cache configured by cfg and starts its background
// cleaner goroutine if cfg.CleanupInterval > 0.
func New(cfg Config) *Cache {
	c := &Cache{cfg: cfg, shards: make(map[Family]*familyShard), stopCleaner: make(chan struct{})}
	if cfg.CleanupInterval > 0 {
		go c.runCleaner(cfg.CleanupInterval)
	}
	return c
}

// Close stops the background cleaner. Safe to call more than once.
func (c *Cache) Close() {
	c.cleanerOnce.Do(func() { close(c.stopCleaner) })
}

func (c *Cache) shard(f Family) *familyShard {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shards[f]
	if !ok {
		s = &familyShard{entries: make(map[string]*entry)}
		c.shards[f] = s
	}
	return s
}

// Get returns the cached value for key in family f, reporting ok=false
// on a miss or an expired entry (which is evicted lazily here even
// when the background cleaner is disabled).
func (c *Cache) Get(f Family, key string) (interface{}, bool) {
	s := c.shard(f)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		return nil, false
	}
	now := time.Now()
	if now.After(e.expiresAt) {
		delete(s.entries, key)
		s.stats.Expirations++
		s.stats.Misses++
		return nil, false
	}

	gap := now.Sub(e.lastAccess)
	e.emaGap = ewma(e.emaGap, gap, c.cfg.AdaptationRate)
	e.ttl = adaptTTL(e.emaGap, c.cfg)
	e.lastAccess = now
	e.expiresAt = now.Add(e.ttl)

	s.stats.Hits++
	return e.value, true
}

// Put stores value under key in family f with the family's baseline
// TTL (MinTTL), to be adapted upward as accesses arrive. Put evicts
// the oldest entry first if the family is at capacity.
func (c *Cache) Put(f Family, key string, value interface{}) {
	s := c.shard(f)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && c.cfg.CapacityPerFamily > 0 && len(s.entries) >= c.cfg.CapacityPerFamily {
		c.evictOldestLocked(s)
	}

	now := time.Now()
	ttl := c.cfg.MinTTL
	s.entries[key] = &entry{value: value, expiresAt: now.Add(ttl), lastAccess: now, ttl: ttl}
	s.order = append(s.order, key)
}

func (c *Cache) evictOldestLocked(s *familyShard) {
	for len(s.order) > 0 {
		k := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.entries[k]; ok {
			delete(s.entries, k)
			s.stats.Evictions++
			return
		}
	}
}

// Invalidate removes key from family f, implementing write-through:
// callers invalidate on every durable write so the next Get
// repopulates from the backend.
func (c *Cache) Invalidate(f Family, key string) {
	s := c.shard(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Stats returns a snapshot of family f's counters.
func (c *Cache) Stats(f Family) Stats {
	s := c.shard(f)
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.Size = len(s.entries)
	return st
}

func (c *Cache) runCleaner(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCleaner:
			return
		case <-t.C:
			c.sweepExpired()
		}
	}
}

func (c *Cache) sweepExpired() {
	c.mu.RLock()
	shards := make([]*familyShard, 0, len(c.shards))
	for _, s := range c.shards {
		shards = append(shards, s)
	}
	c.mu.RUnlock()

	now := time.Now()
	for _, s := range shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, k)
				s.stats.Expirations++
			}
		}
		s.mu.Unlock()
	}
}

// ewma returns the exponentially-weighted moving average of prev and
// sample with smoothing factor rate. A zero prev seeds directly from
// sample so the first observed gap isn't diluted toward zero.
func ewma(prev, sample time.Duration, rate float64) time.Duration {
	if prev == 0 {
		return sample
	}
	return time.Duration(float64(prev)*(1-rate) + float64(sample)*rate)
}

// adaptTTL maps an entry's EMA inter-access gap onto [MinTTL, MaxTTL]:
// gaps at or below HotThreshold push toward MaxTTL, gaps at or above
// ColdThreshold collapse toward MinTTL, and gaps in between
// interpolate linearly.
func adaptTTL(emaGap time.Duration, cfg Config) time.Duration {
	switch {
	case emaGap <= cfg.HotThreshold:
		return cfg.MaxTTL
	case emaGap >= cfg.ColdThreshold:
		return cfg.MinTTL
	default:
		span := cfg.ColdThreshold - cfg.HotThreshold
		frac := float64(cfg.ColdThreshold-emaGap) / float64(span)
		return cfg.MinTTL + time.Duration(frac*float64(cfg.MaxTTL-cfg.MinTTL))
	}
}

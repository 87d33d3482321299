package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CleanupInterval = 0 // drive sweeps manually in tests
	return cfg
}

func TestPutGetHitsAndMisses(t *testing.T) {
	c := New(testConfig())
	defer c.Close()

	_, ok := c.Get(FamilyEpisode, "ep_1")
	assert.False(t, ok)

	c.Put(FamilyEpisode, "ep_1", "payload")
	v, ok := c.Get(FamilyEpisode, "ep_1")
	require.True(t, ok)
	assert.Equal(t, "payload", v)

	st := c.Stats(FamilyEpisode)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.Size)
}

func TestInvalidateForcesRepopulate(t *testing.T) {
	c := New(testConfig())
	defer c.Close()

	c.Put(FamilyPattern, "pt_1", 42)
	c.Invalidate(FamilyPattern, "pt_1")
	_, ok := c.Get(FamilyPattern, "pt_1")
	assert.False(t, ok)
}

func TestFamiliesAreIndependent(t *testing.T) {
	c := New(testConfig())
	defer c.Close()

	c.Put(FamilyEpisode, "same-key", "episode-value")
	c.Put(FamilyPattern, "same-key", "pattern-value")

	ev, _ := c.Get(FamilyEpisode, "same-key")
	pv, _ := c.Get(FamilyPattern, "same-key")
	assert.Equal(t, "episode-value", ev)
	assert.Equal(t, "pattern-value", pv)
}

func TestEWMASeedsFromFirstSample(t *testing.T) {
	assert.Equal(t, 5*time.Second, ewma(0, 5*time.Second, 0.3))
}

func TestEWMABlendsTowardNewSample(t *testing.T) {
	got := ewma(10*time.Second, 0, 0.5)
	assert.Equal(t, 5*time.Second, got)
}

func TestAdaptTTLClampsAtExtremes(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.MaxTTL, adaptTTL(0, cfg))
	assert.Equal(t, cfg.MinTTL, adaptTTL(time.Hour, cfg))
}

func TestAdaptTTLInterpolatesBetweenThresholds(t *testing.T) {
	cfg := DefaultConfig()
	mid := cfg.HotThreshold + (cfg.ColdThreshold-cfg.HotThreshold)/2
	got := adaptTTL(mid, cfg)
	assert.Greater(t, got, cfg.MinTTL)
	assert.Less(t, got, cfg.MaxTTL)
}

func TestSweepExpiredRemovesStaleEntries(t *testing.T) {
	cfg := testConfig()
	cfg.MinTTL = time.Millisecond
	c := New(cfg)
	defer c.Close()

	c.Put(FamilyEpisode, "ep_1", "v")
	time.Sleep(5 * time.Millisecond)
	c.sweepExpired()

	st := c.Stats(FamilyEpisode)
	assert.Equal(t, int64(1), st.Expirations)
	assert.Equal(t, 0, st.Size)
}

func TestCapacityEvictsOldestOnOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.CapacityPerFamily = 2
	c := New(cfg)
	defer c.Close()

	c.Put(FamilyEpisode, "ep_1", 1)
	c.Put(FamilyEpisode, "ep_2", 2)
	c.Put(FamilyEpisode, "ep_3", 3)

	st := c.Stats(FamilyEpisode)
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, int64(1), st.Evictions)
}

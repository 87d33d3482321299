package spatiotemporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndQueryBucket(t *testing.T) {
	idx := New()
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	idx.Insert("ep_1", ts)
	idx.Insert("ep_2", ts.Add(5*time.Minute))

	got := idx.QueryBucket(2024, 3, 15, 10)
	assert.ElementsMatch(t, []string{"ep_1", "ep_2"}, got)
	assert.Empty(t, idx.QueryBucket(2024, 3, 15, 11))
}

func TestQueryRangeSpansMultipleBuckets(t *testing.T) {
	idx := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx.Insert("ep_jan1", base)
	idx.Insert("ep_jan2", base.Add(25*time.Hour))
	idx.Insert("ep_feb", base.AddDate(0, 1, 0))

	out := idx.QueryRange(base, base.Add(48*time.Hour))
	assert.ElementsMatch(t, []string{"ep_jan1", "ep_jan2"}, out)
}

func TestInsertMovesExistingID(t *testing.T) {
	idx := New()
	t1 := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)

	idx.Insert("ep_1", t1)
	idx.Insert("ep_1", t2)

	assert.Empty(t, idx.QueryBucket(2024, 1, 1, 1))
	assert.Equal(t, []string{"ep_1"}, idx.QueryBucket(2024, 1, 1, 2))
	assert.Equal(t, 1, idx.Len())
}

func TestRemovePrunesEmptyBuckets(t *testing.T) {
	idx := New()
	ts := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	idx.Insert("ep_1", ts)
	idx.Remove("ep_1")

	require.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.QueryBucket(2024, 1, 1, 1))
	assert.Zero(t, idx.MemoryUsageEstimate())
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	idx := New()
	idx.Remove("ep_never_inserted")
	assert.Equal(t, 0, idx.Len())
}

func TestQueryRangeEmptyWhenToBeforeFrom(t *testing.T) {
	idx := New()
	idx.Insert("ep_1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	out := idx.QueryRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Empty(t, out)
}

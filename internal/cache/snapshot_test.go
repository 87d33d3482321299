package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/memoryd/engine/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Version:   snapshotVersion,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Entries: []SnapshotEntry{
			{Family: FamilyEpisode, Key: "ep_1", Value: []byte(`{"id":"ep_1"}`), TTL: time.Minute},
			{Family: FamilyPattern, Key: "pt_1", Value: []byte(`{"id":"pt_1"}`), TTL: 2 * time.Minute},
		},
		Metadata: map[string]string{"writer": "memoryd-test"},
	}
}

func TestEncodeDecodeRoundTripsUncompressed(t *testing.T) {
	s := sampleSnapshot()
	framed, err := Encode(s, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0), framed[0])

	got, err := Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, s.Version, got.Version)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, s.Metadata, got.Metadata)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, s.Entries[0].Key, got.Entries[0].Key)
	assert.Equal(t, s.Entries[1].Value, got.Entries[1].Value)
}

func TestEncodeDecodeRoundTripsCompressed(t *testing.T) {
	s := sampleSnapshot()
	s.Entries[0].Value = []byte(strings.Repeat("a", 4096))
	framed, err := Encode(s, true)
	require.NoError(t, err)
	assert.Equal(t, byte(1), framed[0])

	got, err := Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, s.Entries[0].Value, got.Entries[0].Value)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	s := sampleSnapshot()
	s.Version = 99
	framed, err := Encode(s, false)
	require.NoError(t, err)

	_, err = Decode(framed)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

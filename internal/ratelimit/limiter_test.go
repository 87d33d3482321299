package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowAdmitsWithinBurst(t *testing.T) {
	l := New(Config{RequestsPerSecond: 10, Burst: 3})
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestAllowRecoversAfterRefillPeriod(t *testing.T) {
	l := New(Config{RequestsPerSecond: 100, Burst: 1})
	require.True(t, l.Allow())
	require.False(t, l.Allow())

	time.Sleep(20 * time.Millisecond) // two refill periods at 100/s
	assert.True(t, l.Allow())
}

func TestWaitReturnsOnContextCancellation(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.001, Burst: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetRateAdjustsLiveLimits(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, l.Allow())
	require.False(t, l.Allow())

	l.SetRate(Config{RequestsPerSecond: 1, Burst: 5})
	var admitted int
	for i := 0; i < 5; i++ {
		if l.Allow() {
			admitted++
		}
	}
	assert.Greater(t, admitted, 0)
}

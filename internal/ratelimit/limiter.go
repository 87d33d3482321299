// Package ratelimit is the optional facade that sits in front of
// the engine for networked deployments: a token bucket gating inbound
// calls so that when a request is rejected, the engine is never
// invoked. Built on golang.org/x/time/rate, the idiomatic Go token
// bucket used for exactly this purpose across the ecosystem (and
// already an indirect dependency the rest of the retrieved pack
// carries).
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Config describes the token bucket: a sustained rate in requests per
// second and a burst capacity.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter wraps rate.Limiter with the Allow/Wait surface the engine's
// callers (CLI, RPC front ends) need.
type Limiter struct {
	l *rate.Limiter
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
}

// Allow reports whether a call may proceed right now, consuming one
// token if so. Callers reject the request without invoking the engine
// when Allow returns false.
func (l *Limiter) Allow() bool {
	return l.l.Allow()
}

// Wait blocks until a token is available or ctx is cancelled,
// returning ctx.Err() in the latter case.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.l.Reserve()
	if !r.OK() {
		<-ctx.Done()
		return ctx.Err()
	}
	timer := time.NewTimer(r.Delay())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// SetRate adjusts the sustained rate and burst at runtime, e.g. from a
// live config reload.
func (l *Limiter) SetRate(cfg Config) {
	l.l.SetLimit(rate.Limit(cfg.RequestsPerSecond))
	l.l.SetBurst(cfg.Burst)
}

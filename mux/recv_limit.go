package mux

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// ReceiveLimiter bounds how many driver events a socket drains per unit
// of time using a token bucket. The configuration can be swapped at
// runtime (config hot reload) without racing the tick loop.
type ReceiveLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewTokenRecvLimiter creates a token-bucket limiter allowing limit
// events per second with the given burst.
func NewTokenRecvLimiter(limit int, burst int) *ReceiveLimiter {
	l := &ReceiveLimiter{}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
	return l
}

// TryTake reports whether one more event may be processed now. The tick
// loop stops draining for the rest of the tick on false; pending events
// stay queued in the driver.
func (l *ReceiveLimiter) TryTake() bool {
	return l.limiter.Load().Allow()
}

// Take blocks until a token is available. Only for callers outside the
// cooperative tick loop.
func (l *ReceiveLimiter) Take() error {
	return l.limiter.Load().Wait(context.Background())
}

// Reload swaps in a new rate and burst at runtime.
func (l *ReceiveLimiter) Reload(limit int, burst int) {
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// recvLimiterFilter adapts the limiter into the inbound filter chain so
// per-message dispatch is also covered when a single packet fans out into
// many messages.
func (l *ReceiveLimiter) recvLimiterFilter(d *Delivery, f FilterHandleFunc) error {
	if !l.TryTake() {
		return nil
	}
	return f(d)
}

// FunnelRecvLimiter is the leaky-bucket alternative built on Uber's
// ratelimit package. It spaces events evenly instead of allowing bursts,
// which some deployments prefer for smoothing per-tick work.
type FunnelRecvLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelRecvLimiter creates a leaky-bucket limiter allowing limit
// events per second.
func NewFunnelRecvLimiter(limit int) *FunnelRecvLimiter {
	limiter := ratelimit.New(limit)
	l := &FunnelRecvLimiter{}
	l.limiter.Store(&limiter)
	return l
}

// Take blocks until the next slot.
func (l *FunnelRecvLimiter) Take() {
	_ = (*l.limiter.Load()).Take()
}

// Reload swaps in a new rate at runtime.
func (l *FunnelRecvLimiter) Reload(limit int) {
	limiter := ratelimit.New(limit)
	l.limiter.Store(&limiter)
}

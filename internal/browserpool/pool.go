// Package browserpool manages a bounded set of headless-browser handles
// used by scrape-platform fetch nodes. No concrete browser driver lives in
// this module: Session is a capability interface a chromedp/go-rod-backed
// implementation satisfies elsewhere, so the pool's lifecycle, rotation and
// circuit-breaker logic can be built and tested without one.
package browserpool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Acquire once Cleanup has run.
var ErrClosed = errors.New("browserpool: pool is closed")

// Session is the capability surface a pooled browser handle exposes. A
// concrete implementation wraps a real page/tab; this package only manages
// its lifecycle.
type Session interface {
	// Close tears down the underlying page/context. Called by the pool when
	// a rotation threshold or the failure circuit breaker trips.
	Close() error
}

// SessionFactory creates a fresh Session, e.g. a new browser tab.
type SessionFactory func(ctx context.Context) (Session, error)

// Handle wraps a pooled Session with the rotation and failure counters
// described by the pool's invariants. Callers interact with the Session via
// Handle.Session; RecordFailure/RecordSuccess drive the circuit breaker.
type Handle struct {
	Session Session

	pageRotations    int
	contextRotations int
	consecutiveFails int
	released         bool
}

// Config bounds the pool's rotation and failure thresholds.
type Config struct {
	// Size is the number of concurrent handles the pool hands out. Default
	// of 1 throttles load on the target site, per spec §4.G.
	Size int
	// PageRotationThreshold destroys and recreates a handle's session on
	// Release once this many scrapes (RecordSuccess or RecordFailure calls)
	// have been recorded on it, to mitigate renderer drift.
	PageRotationThreshold int
	// ContextRotationThreshold does the same for the browser context,
	// typically a larger multiple of PageRotationThreshold.
	ContextRotationThreshold int
	// MaxConsecutiveFailures short-circuits a handle: once a session fails
	// this many scrapes in a row it is destroyed rather than reused.
	MaxConsecutiveFailures int
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 1
	}
	if c.PageRotationThreshold <= 0 {
		c.PageRotationThreshold = 50
	}
	if c.ContextRotationThreshold <= 0 {
		c.ContextRotationThreshold = 500
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 3
	}
	return c
}

// Pool is a bounded, rotating set of browser handles.
type Pool struct {
	cfg       Config
	factory   SessionFactory
	onRecycle func(trigger string)

	mu      sync.Mutex
	free    []*Handle
	created int
	closed  bool
}

// New builds a Pool of cfg.Size handles, lazily created on first Acquire.
// onRecycle, if non-nil, is called with "failure_circuit", "context_rotation",
// or "page_rotation" every time Release recycles a handle's session; callers
// wire it to metrics.Metrics.IncBrowserRecycle.
func New(cfg Config, factory SessionFactory, onRecycle func(trigger string)) *Pool {
	return &Pool{cfg: cfg.withDefaults(), factory: factory, onRecycle: onRecycle}
}

// Acquire returns an available Handle, blocking until one is free or ctx is
// done. Fails fast with ErrClosed once Cleanup has run.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		if len(p.free) > 0 {
			h := p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
			h.released = false
			p.mu.Unlock()
			return h, nil
		}
		outstanding := p.outstandingLocked()
		p.mu.Unlock()

		if outstanding < p.cfg.Size {
			h, err := p.newHandle(ctx)
			if err != nil {
				return nil, err
			}
			return h, nil
		}

		timer := time.NewTimer(10 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// outstandingLocked reports how many handles this pool has ever created
// that are not currently sitting in the free list; used only to decide
// whether Acquire may mint a new one. Caller must hold p.mu.
func (p *Pool) outstandingLocked() int {
	return p.created - len(p.free)
}

func (p *Pool) newHandle(ctx context.Context) (*Handle, error) {
	sess, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	return &Handle{Session: sess}, nil
}

// Release returns a handle to the pool, recreating its session first if a
// rotation threshold or the failure circuit breaker has tripped. Idempotent:
// releasing the same handle twice is a no-op the second time.
func (p *Pool) Release(ctx context.Context, h *Handle) {
	if h == nil || h.released {
		return
	}
	h.released = true

	if trigger := p.recycleTrigger(h); trigger != "" {
		if p.onRecycle != nil {
			p.onRecycle(trigger)
		}
		if h.Session != nil {
			_ = h.Session.Close()
		}
		sess, err := p.factory(ctx)
		if err == nil {
			h.Session = sess
		}
		h.pageRotations = 0
		h.contextRotations = 0
		h.consecutiveFails = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if h.Session != nil {
			_ = h.Session.Close()
		}
		return
	}
	p.free = append(p.free, h)
}

// recycleTrigger reports which threshold, if any, h has tripped, in
// priority order (failure circuit breaker first). Returns "" if h should
// simply be returned to the free list untouched.
func (p *Pool) recycleTrigger(h *Handle) string {
	if h.consecutiveFails >= p.cfg.MaxConsecutiveFailures {
		return "failure_circuit"
	}
	if h.contextRotations >= p.cfg.ContextRotationThreshold {
		return "context_rotation"
	}
	if h.pageRotations >= p.cfg.PageRotationThreshold {
		return "page_rotation"
	}
	return ""
}

// RecordSuccess marks a scrape as successful on h, resetting its
// consecutive-failure counter and advancing its rotation counters.
func (h *Handle) RecordSuccess() {
	h.consecutiveFails = 0
	h.pageRotations++
	h.contextRotations++
}

// RecordFailure marks a scrape as failed on h, advancing the
// consecutive-failure counter that drives the pool's circuit breaker.
func (h *Handle) RecordFailure() {
	h.consecutiveFails++
	h.pageRotations++
	h.contextRotations++
}

// Cleanup drains the free list, closes every idle session, and marks the
// pool closed so further Acquire calls fail fast.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, h := range p.free {
		if h.Session != nil {
			_ = h.Session.Close()
		}
	}
	p.free = nil
}

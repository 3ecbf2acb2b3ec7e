package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now and consumes the slot if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// Interval spaces successive requests at least a fixed delay apart. The first
// request after creation or Reset passes immediately.
type Interval struct {
	delay time.Duration
	last  time.Time
	mu    sync.Mutex

	now func() time.Time
}

// NewInterval creates an interval limiter. A zero delay never blocks.
func NewInterval(delay time.Duration) *Interval {
	return &Interval{delay: delay, now: time.Now}
}

// Allow checks if the delay since the previous request has elapsed
func (iv *Interval) Allow() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.remaining() > 0 {
		return false
	}
	iv.last = iv.now()
	return true
}

// Wait blocks until the delay since the previous request has elapsed
func (iv *Interval) Wait(ctx context.Context) error {
	for {
		iv.mu.Lock()
		remaining := iv.remaining()
		if remaining <= 0 {
			iv.last = iv.now()
			iv.mu.Unlock()
			return nil
		}
		iv.mu.Unlock()

		if err := sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// Reset forgets the previous request
func (iv *Interval) Reset() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.last = time.Time{}
}

// Delay returns the configured spacing
func (iv *Interval) Delay() time.Duration {
	return iv.delay
}

func (iv *Interval) remaining() time.Duration {
	if iv.delay <= 0 || iv.last.IsZero() {
		return 0
	}
	return iv.delay - iv.now().Sub(iv.last)
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// PerMinute creates a bucket allowing n requests per minute, or nil when n is
// not positive.
func PerMinute(n int) *TokenBucket {
	if n <= 0 {
		return nil
	}
	return NewTokenBucket(n, time.Minute)
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		untilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if untilRefill <= 0 {
			untilRefill = 10 * time.Millisecond
		}
		if err := sleep(ctx, untilRefill); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

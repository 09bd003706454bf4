// Package ratelimit provides the token bucket that gates every outbound
// tracker request.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrExceedsCapacity is returned when a caller asks for more tokens than
	// the bucket can ever hold. Such a request would otherwise wait forever.
	ErrExceedsCapacity = errors.New("ratelimit: requested tokens exceed bucket capacity")

	// ErrInvalidTokens is returned for non-positive token requests.
	ErrInvalidTokens = errors.New("ratelimit: token count must be positive")
)

// Clock abstracts time so the bucket can be driven deterministically.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a TokenBucket.
type Option func(*TokenBucket)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(b *TokenBucket) {
		b.clock = clock
	}
}

// WithInitialTokens starts the bucket with the given count instead of full.
func WithInitialTokens(tokens float64) Option {
	return func(b *TokenBucket) {
		b.tokens = tokens
	}
}

// TokenBucket allows bursts of up to capacity requests and a long-run rate of
// rate requests per second. It is safe for concurrent use.
type TokenBucket struct {
	capacity float64
	rate     float64
	clock    Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int, rate float64, opts ...Option) (*TokenBucket, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ratelimit: capacity must be at least 1, got %d", capacity)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("ratelimit: rate must be a positive number, got %v", rate)
	}

	b := &TokenBucket{
		capacity: float64(capacity),
		rate:     rate,
		clock:    realClock{},
		tokens:   float64(capacity),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.tokens = clamp(b.tokens, 0, b.capacity)
	b.lastRefill = b.clock.Now()

	return b, nil
}

// Capacity returns the maximum number of tokens.
func (b *TokenBucket) Capacity() int {
	return int(b.capacity)
}

// Rate returns the refill rate in tokens per second.
func (b *TokenBucket) Rate() float64 {
	return b.rate
}

// Tokens returns the current token count after a refill.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

// Consume blocks until n tokens are available, then deducts them.
//
// Requests for more than the capacity fail immediately with
// ErrExceedsCapacity. If ctx ends while waiting, nothing is deducted and the
// context error is returned.
func (b *TokenBucket) Consume(ctx context.Context, n int) error {
	if n <= 0 {
		return ErrInvalidTokens
	}
	need := float64(n)
	if need > b.capacity {
		return fmt.Errorf("%w: requested %d, capacity %d", ErrExceedsCapacity, n, int(b.capacity))
	}

	for {
		wait, ok := b.tryConsume(need)
		if ok {
			return nil
		}
		if err := b.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryConsume runs refill, check and deduct as one critical section. When not
// enough tokens are present it returns how long the caller should wait.
func (b *TokenBucket) tryConsume(need float64) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= need {
		b.tokens -= need
		return 0, true
	}

	return waitFor(need-b.tokens, b.rate), false
}

// waitFor is the time needed to refill missing tokens, at least 1ns and
// capped at the largest time.Duration.
func waitFor(missing, rate float64) time.Duration {
	nanos := math.Ceil(missing / rate * float64(time.Second))
	switch {
	case nanos >= math.MaxInt64 || math.IsNaN(nanos):
		return time.Duration(math.MaxInt64)
	case nanos < 1:
		return time.Nanosecond
	}
	return time.Duration(nanos)
}

// refill must be called with mu held.
func (b *TokenBucket) refill() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed < 0 {
		elapsed = 0
	}
	b.tokens = clamp(b.tokens+elapsed.Seconds()*b.rate, 0, b.capacity)
	b.lastRefill = now
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

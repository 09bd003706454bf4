package ratelimit

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when Sleep or Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func TestNewTokenBucket(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		rate     float64
		wantErr  bool
	}{
		{"valid", 5, 2, false},
		{"zero capacity", 0, 2, true},
		{"negative rate", 5, -1, true},
		{"zero rate", 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewTokenBucket(tt.capacity, tt.rate)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.capacity, b.Capacity())
			assert.Equal(t, tt.rate, b.Rate())
			assert.InDelta(t, float64(tt.capacity), b.Tokens(), 0.01)
		})
	}
}

func TestConsumeBurstWithoutWaiting(t *testing.T) {
	clock := newFakeClock()
	b, err := NewTokenBucket(5, 2, WithClock(clock))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Consume(context.Background(), 1))
	}

	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, 0.0, b.Tokens())
}

func TestConsumeDeductsWhenTokensAvailable(t *testing.T) {
	for n := 1; n <= 4; n++ {
		clock := newFakeClock()
		b, err := NewTokenBucket(4, 1, WithClock(clock))
		require.NoError(t, err)

		require.NoError(t, b.Consume(context.Background(), n))

		assert.Empty(t, clock.Sleeps(), "n=%d should not wait", n)
		assert.Equal(t, float64(4-n), b.Tokens())
	}
}

func TestConsumeWaitsForRefill(t *testing.T) {
	clock := newFakeClock()
	b, err := NewTokenBucket(2, 2, WithClock(clock), WithInitialTokens(0))
	require.NoError(t, err)

	require.NoError(t, b.Consume(context.Background(), 1))

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 500*time.Millisecond, sleeps[0])
	assert.InDelta(t, 0, b.Tokens(), 1e-9)
}

func TestConsumeRefillsPartially(t *testing.T) {
	clock := newFakeClock()
	b, err := NewTokenBucket(10, 1, WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, b.Consume(context.Background(), 5))
	clock.Advance(2 * time.Second)

	assert.Equal(t, 7.0, b.Tokens())

	clock.Advance(time.Hour)
	assert.Equal(t, 10.0, b.Tokens(), "refill is clamped to capacity")
}

func TestConsumeRejectsMoreThanCapacity(t *testing.T) {
	b, err := NewTokenBucket(3, 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- b.Consume(context.Background(), 4)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExceedsCapacity)
	case <-time.After(time.Second):
		t.Fatal("Consume with n > capacity must not wait")
	}

	assert.InDelta(t, 3, b.Tokens(), 0.01, "rejected request must not deduct")
}

func TestConsumeRejectsNonPositive(t *testing.T) {
	b, err := NewTokenBucket(3, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Consume(context.Background(), 0), ErrInvalidTokens)
	assert.ErrorIs(t, b.Consume(context.Background(), -2), ErrInvalidTokens)
}

func TestTokensStayWithinBounds(t *testing.T) {
	clock := newFakeClock()
	b, err := NewTokenBucket(5, 3, WithClock(clock))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		clock.Advance(time.Duration(rng.Intn(2000)) * time.Millisecond)
		require.NoError(t, b.Consume(context.Background(), 1+rng.Intn(5)))

		tokens := b.Tokens()
		assert.GreaterOrEqual(t, tokens, 0.0)
		assert.LessOrEqual(t, tokens, 5.0)
	}
}

func TestConsumeContextCancelled(t *testing.T) {
	b, err := NewTokenBucket(1, 0.01, WithInitialTokens(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = b.Consume(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, b.Tokens(), 1.0)
}

func TestConcurrentConsumeNeverOverIssues(t *testing.T) {
	b, err := NewTokenBucket(10, 0.001)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Consume(ctx, 1) == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), granted.Load())
	assert.GreaterOrEqual(t, b.Tokens(), 0.0)
}

func TestConcurrentConsumeSharesRefill(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the wall clock")
	}

	b, err := NewTokenBucket(1, 1, WithInitialTokens(0))
	require.NoError(t, err)

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Consume(context.Background(), 1)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 950*time.Millisecond)
	assert.GreaterOrEqual(t, b.Tokens(), 0.0)
}

func TestWaitForTinyRateDoesNotOverflow(t *testing.T) {
	b, err := NewTokenBucket(1, 1e-11, WithClock(newFakeClock()), WithInitialTokens(0))
	require.NoError(t, err)

	wait, ok := b.tryConsume(1)
	assert.False(t, ok)
	assert.Equal(t, time.Duration(math.MaxInt64), wait)

	assert.Equal(t, time.Nanosecond, waitFor(1e-12, 1))
	assert.Equal(t, 500*time.Millisecond, waitFor(1, 2))
}

func TestConsumeWithTinyRateBlocksUntilCancelled(t *testing.T) {
	b, err := NewTokenBucket(1, 1e-11, WithInitialTokens(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = b.Consume(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.InDelta(t, 0, b.Tokens(), 1e-6)
}

package maintenance

import (
	"context"
	"sync"
	"time"
)

// Throttle paces store writes. Wait blocks until the next write may go out.
type Throttle interface {
	Wait(ctx context.Context) error
}

// TokenBucket refills continuously at Rate tokens per second up to Burst.
// Every Wait takes one token; when the bucket is empty the caller sleeps
// until its token has been refilled.
type TokenBucket struct {
	Rate  float64
	Burst int

	mu     sync.Mutex
	tokens float64
	last   time.Time
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewTokenBucket(rate float64, burst int) *TokenBucket {
	return newTokenBucket(rate, burst, time.Now, sleepContext)
}

func newTokenBucket(rate float64, burst int, now func() time.Time, sleep func(context.Context, time.Duration) error) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		Rate:   rate,
		Burst:  burst,
		tokens: float64(burst),
		last:   now(),
		now:    now,
		sleep:  sleep,
	}
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tb.mu.Lock()
	now := tb.now()
	tb.refill(now)

	if tb.tokens >= 1 {
		tb.tokens--
		tb.mu.Unlock()
		return nil
	}

	// Reserve the token now so later callers queue behind this one.
	wait := time.Duration((1 - tb.tokens) / tb.Rate * float64(time.Second))
	tb.tokens--
	tb.mu.Unlock()

	return tb.sleep(ctx, wait)
}

// refill adds the tokens earned since the last call. Caller holds tb.mu.
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.tokens+elapsed*tb.Rate, float64(tb.Burst))
	}
	tb.last = now
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

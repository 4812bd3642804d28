package maintenance

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/codetesla51/redis-cleanup/store"
)

type SeedOptions struct {
	Prefix    string
	NumKeys   int
	Threshold float64
	TTL       time.Duration
}

type SeedSummary struct {
	Created    int
	WithExpiry int
}

type Seeder struct {
	store    store.Store
	reporter Reporter
	recorder Recorder
	throttle Throttle

	// draw returns a uniform value in [0,1)
	draw func() float64
	// newID returns a time-ordered unique token
	newID func() (string, error)
}

func NewSeeder(s store.Store, r Reporter, rec Recorder) *Seeder {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Seeder{
		store:    s,
		reporter: r,
		recorder: rec,
		draw:     rand.Float64,
		newID:    newSortableID,
	}
}

// WithThrottle paces writes. A nil throttle disables pacing.
func (s *Seeder) WithThrottle(t Throttle) *Seeder {
	s.throttle = t
	return s
}

// newSortableID returns a UUIDv7, whose text form sorts by creation time.
func newSortableID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Run writes opts.NumKeys keys named "<prefix>:<id>" with the value true.
// A key gets opts.TTL as expiry when a uniform draw falls below
// opts.Threshold. The first write error stops the run.
func (s *Seeder) Run(ctx context.Context, opts SeedOptions) (SeedSummary, error) {
	var summary SeedSummary
	s.reporter.SeedStarted(opts)

	for i := 1; i <= opts.NumKeys; i++ {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("seed: interrupted after %d of %d keys: %w", i-1, opts.NumKeys, err)
		}

		id, err := s.newID()
		if err != nil {
			return summary, fmt.Errorf("seed: generate id: %w", err)
		}
		key := opts.Prefix + ":" + id

		if s.throttle != nil {
			if err := s.throttle.Wait(ctx); err != nil {
				return summary, fmt.Errorf("seed: interrupted after %d of %d keys: %w", i-1, opts.NumKeys, err)
			}
		}

		withExpiry := s.draw() < opts.Threshold
		if withExpiry {
			err = s.store.SetWithExpiry(ctx, key, true, opts.TTL)
		} else {
			err = s.store.Set(ctx, key, true)
		}
		if err != nil {
			return summary, fmt.Errorf("seed: write key %q: %w", key, err)
		}

		summary.Created++
		var ttl time.Duration
		if withExpiry {
			summary.WithExpiry++
			ttl = opts.TTL
		}
		s.recorder.RecordSeeded(withExpiry)
		s.reporter.KeyCreated(key, ttl, i, opts.NumKeys)
	}

	s.reporter.SeedFinished(summary)
	return summary, nil
}

package maintenance

import (
	"context"
	"fmt"
	"sort"

	"github.com/codetesla51/redis-cleanup/store"
)

// Recorder collects run metrics. *metrics.Recorder implements it.
type Recorder interface {
	RecordScanned(pattern string, n int)
	RecordDecision(decision string)
	RecordDeleted()
	RecordSeeded(withExpiry bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordScanned(string, int) {}
func (nopRecorder) RecordDecision(string)     {}
func (nopRecorder) RecordDeleted()            {}
func (nopRecorder) RecordSeeded(bool)         {}

type CleanupOptions struct {
	// Pattern is a glob handed verbatim to the store
	Pattern string
	// MaxTTL is the highest TTL, in seconds, that still gets deleted
	MaxTTL int64
	// Commit performs the deletions; without it the run is a dry run
	Commit bool
	// Exclude marks keys that are never deleted. May be nil.
	Exclude ExclusionPredicate
}

type CleanupSummary struct {
	Scanned          int
	DeleteCandidates int
	Deleted          int
	Skipped          int
	Managed          int
}

type Cleaner struct {
	store    store.Store
	reporter Reporter
	recorder Recorder
	throttle Throttle
}

func NewCleaner(s store.Store, r Reporter, rec Recorder) *Cleaner {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Cleaner{
		store:    s,
		reporter: r,
		recorder: rec,
	}
}

// WithThrottle paces deletions. A nil throttle disables pacing.
func (c *Cleaner) WithThrottle(t Throttle) *Cleaner {
	c.throttle = t
	return c
}

// Run enumerates the keys matching opts.Pattern in sorted order and deletes
// the ones whose TTL is at or below opts.MaxTTL. The first store error stops
// the run; deletions already made are not undone.
func (c *Cleaner) Run(ctx context.Context, opts CleanupOptions) (CleanupSummary, error) {
	var summary CleanupSummary
	c.reporter.CleanupStarted(opts)

	keys, err := c.store.Keys(ctx, opts.Pattern)
	if err != nil {
		return summary, fmt.Errorf("cleanup: list keys %q: %w", opts.Pattern, err)
	}
	total := len(keys)
	c.reporter.KeysRetrieved(total)
	c.recorder.RecordScanned(opts.Pattern, total)

	sort.Strings(keys)

	for idx, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("cleanup: interrupted after %d of %d keys: %w", idx, total, err)
		}
		summary.Scanned++

		ttl, err := c.store.TTL(ctx, key)
		if err != nil {
			return summary, fmt.Errorf("cleanup: ttl for key %q: %w", key, err)
		}

		decision := Classify(key, ttl, opts.MaxTTL, opts.Exclude)
		c.reporter.KeyClassified(key, ttl, decision, idx+1, total)
		c.recorder.RecordDecision(decision.String())

		switch decision {
		case DecisionManagedSkip:
			summary.Managed++
			continue
		case DecisionSkip:
			summary.Skipped++
			continue
		}

		summary.DeleteCandidates++
		if !opts.Commit {
			continue
		}
		if c.throttle != nil {
			if err := c.throttle.Wait(ctx); err != nil {
				return summary, fmt.Errorf("cleanup: interrupted after %d of %d keys: %w", idx, total, err)
			}
		}
		if err := c.store.Delete(ctx, key); err != nil {
			return summary, fmt.Errorf("cleanup: delete key %q: %w", key, err)
		}
		summary.Deleted++
		c.recorder.RecordDeleted()
		c.reporter.KeyDeleted(key)
	}

	c.reporter.CleanupFinished(summary)
	return summary, nil
}

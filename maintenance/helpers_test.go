package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codetesla51/redis-cleanup/store"
)

var errBoom = errors.New("boom")

// recordingReporter keeps one line per event so tests can compare runs.
type recordingReporter struct {
	lines      []string
	classified map[string]Decision
	deleted    []string
	created    []string
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{classified: make(map[string]Decision)}
}

func (r *recordingReporter) CleanupStarted(opts CleanupOptions) {
	r.lines = append(r.lines, fmt.Sprintf("cleanup %s max=%d commit=%t", opts.Pattern, opts.MaxTTL, opts.Commit))
}

func (r *recordingReporter) KeysRetrieved(count int) {
	r.lines = append(r.lines, fmt.Sprintf("retrieved %d", count))
}

func (r *recordingReporter) KeyClassified(key string, ttl int64, decision Decision, pos, total int) {
	r.classified[key] = decision
	r.lines = append(r.lines, fmt.Sprintf("%s %s ttl=%d (%d/%d)", decision, key, ttl, pos, total))
}

func (r *recordingReporter) KeyDeleted(key string) {
	r.deleted = append(r.deleted, key)
	r.lines = append(r.lines, "deleted "+key)
}

func (r *recordingReporter) CleanupFinished(s CleanupSummary) {
	r.lines = append(r.lines, fmt.Sprintf("finished %+v", s))
}

func (r *recordingReporter) SeedStarted(opts SeedOptions) {
	r.lines = append(r.lines, fmt.Sprintf("seed %s n=%d", opts.Prefix, opts.NumKeys))
}

func (r *recordingReporter) KeyCreated(key string, ttl time.Duration, pos, total int) {
	r.created = append(r.created, key)
	r.lines = append(r.lines, fmt.Sprintf("created %s ttl=%s (%d/%d)", key, ttl, pos, total))
}

func (r *recordingReporter) SeedFinished(s SeedSummary) {
	r.lines = append(r.lines, fmt.Sprintf("finished %+v", s))
}

// faultyStore wraps a store and fails the named operation for one key
// (or for every key when failKey is empty).
type faultyStore struct {
	store.Store
	failOp  string
	failKey string
	deletes []string
}

func (f *faultyStore) fails(op, key string) bool {
	return f.failOp == op && (f.failKey == "" || f.failKey == key)
}

func (f *faultyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if f.fails("keys", "") {
		return nil, errBoom
	}
	return f.Store.Keys(ctx, pattern)
}

func (f *faultyStore) TTL(ctx context.Context, key string) (int64, error) {
	if f.fails("ttl", key) {
		return 0, errBoom
	}
	return f.Store.TTL(ctx, key)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.fails("delete", key) {
		return errBoom
	}
	f.deletes = append(f.deletes, key)
	return f.Store.Delete(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key string, value interface{}) error {
	if f.fails("set", "") {
		return errBoom
	}
	return f.Store.Set(ctx, key, value)
}

func (f *faultyStore) SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.fails("setex", "") {
		return errBoom
	}
	return f.Store.SetWithExpiry(ctx, key, value, ttl)
}

type memKey struct {
	key string
	ttl time.Duration // zero means no expiry
}

func newMemoryStore(keys ...memKey) *store.MemoryStore {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := store.NewMemoryStore().WithClock(func() time.Time { return frozen })
	ctx := context.Background()
	for _, k := range keys {
		if k.ttl > 0 {
			_ = ms.SetWithExpiry(ctx, k.key, true, k.ttl)
		} else {
			_ = ms.Set(ctx, k.key, true)
		}
	}
	return ms
}

func snapshot(ms store.Store) map[string]int64 {
	ctx := context.Background()
	keys, _ := ms.Keys(ctx, "*")
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[k], _ = ms.TTL(ctx, k)
	}
	return out
}

// countingThrottle counts waits and fails once limit is reached, when set
type countingThrottle struct {
	waits int
	limit int
}

func (c *countingThrottle) Wait(context.Context) error {
	if c.limit > 0 && c.waits >= c.limit {
		return context.DeadlineExceeded
	}
	c.waits++
	return nil
}

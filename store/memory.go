package store

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"
)

type entry struct {
	value      interface{}
	expiration time.Time // zero means no expiry
}

// MemoryStore is an in-process Store. Expired entries are dropped lazily
// when they are next touched.
type MemoryStore struct {
	data map[string]*entry
	mu   sync.Mutex
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (ms *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.now = now
	return ms
}

// live returns the entry for key, evicting it if it has expired.
// Caller holds ms.mu.
func (ms *MemoryStore) live(key string) (*entry, bool) {
	e, exists := ms.data[key]
	if !exists {
		return nil, false
	}
	if !e.expiration.IsZero() && !ms.now().Before(e.expiration) {
		delete(ms.data, key)
		return nil, false
	}
	return e, true
}

func (ms *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	keys := make([]string, 0, len(ms.data))
	for key := range ms.data {
		if _, ok := ms.live(key); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (ms *MemoryStore) TTL(_ context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.live(key)
	if !ok {
		return KeyMissing, nil
	}
	if e.expiration.IsZero() {
		return NoExpiry, nil
	}
	remaining := e.expiration.Sub(ms.now())
	return int64((remaining + time.Second/2) / time.Second), nil
}

// Delete is a no-op for missing keys, same as DEL.
func (ms *MemoryStore) Delete(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.data, key)
	return nil
}

func (ms *MemoryStore) Set(_ context.Context, key string, value interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.data[key] = &entry{value: value}
	return nil
}

func (ms *MemoryStore) SetWithExpiry(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid expire time %s for key %s", ttl, key)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.data[key] = &entry{
		value:      value,
		expiration: ms.now().Add(ttl),
	}
	return nil
}

// Get returns the stored value, mostly useful for assertions.
func (ms *MemoryStore) Get(key string) (interface{}, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.live(key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Len reports the number of live keys.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := 0
	for key := range ms.data {
		if _, ok := ms.live(key); ok {
			n++
		}
	}
	return n
}

func (ms *MemoryStore) Close() error {
	return nil
}

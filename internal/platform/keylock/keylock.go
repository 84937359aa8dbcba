// Package keylock provides exclusive locks keyed by entity identifier.
// Callers acquire every lock an operation touches in one call; keys are
// deduplicated and sorted before acquisition so that concurrent operations
// touching overlapping entity sets cannot deadlock.
package keylock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager hands out per-key exclusive locks. The zero value is not usable;
// create one with New.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

func (m *Manager) get(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) put(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Acquire takes exclusive locks on all keys, blocking until each is held or
// ctx expires. On success it returns a release function that must be called
// on every exit path. On failure no locks remain held and the returned error
// wraps ctx.Err().
func (m *Manager) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupe(keys)

	held := make([]string, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			key := held[i]
			m.mu.Lock()
			m.entries[key].sem.Release(1)
			m.mu.Unlock()
			m.put(key)
		}
	}

	for _, key := range sorted {
		e := m.get(key)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			m.put(key)
			release()
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		held = append(held, key)
	}

	return release, nil
}

// dedupe sorts keys and removes duplicates. Sorting gives every caller the
// same global acquisition order.
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

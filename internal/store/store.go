package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// Entry is an alert together with the time it was last written.
type Entry struct {
	Alert     types.Alert
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory alert store keyed by alert ID.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the record for a.ID.
func (s *Store) Put(a types.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[a.ID] = &Entry{Alert: a, UpdatedAt: s.now()}
}

// Update applies fn to the stored record for id and refreshes its TTL.
// It reports whether the record existed.
func (s *Store) Update(id string, fn func(*types.Alert)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok {
		return false
	}
	fn(&e.Alert)
	e.UpdatedAt = s.now()
	return true
}

// Get returns a copy of the record for id. The entry may be stale if the TTL
// has elapsed but Evict has not run yet.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns the live records, newest first by FiredAtMs.
func (s *Store) List() []types.Alert {
	s.mu.RLock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]types.Alert, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e.Alert)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FiredAtMs != out[j].FiredAtMs {
			return out[i].FiredAtMs > out[j].FiredAtMs
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of records held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes records not updated since now minus the TTL and returns how
// many were removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run evicts stale records every half TTL (at least once a second) until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired alerts", "count", n)
			}
		}
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-node, in-process window store. Multi-instance
// deployments need a shared counter store instead; swapping the Store
// implementation is the extension point for that.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*entry
	lastSweep time.Time
}

type entry struct {
	count int
	start time.Time
	win   time.Duration
}

// sweepEvery caps how often the opportunistic eviction scan runs.
const sweepEvery = time.Second

// NewMemoryStore creates an in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*entry),
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, win time.Duration) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evictExpired(now)

	e, ok := s.windows[key]
	if !ok || now.Sub(e.start) > win {
		// First request for the key, or the window has lapsed: replace wholesale.
		e = &entry{count: 1, start: now, win: win}
		s.windows[key] = e
	} else {
		e.count++
		e.win = win
	}

	return Window{Count: e.count, Start: e.start}, nil
}

// evictExpired drops entries whose window has lapsed. Runs opportunistically
// on Increment, throttled so a hot limiter doesn't rescan the map per call.
// Caller holds the lock.
func (s *MemoryStore) evictExpired(now time.Time) {
	if now.Sub(s.lastSweep) < sweepEvery {
		return
	}
	s.lastSweep = now

	for key, e := range s.windows {
		if now.Sub(e.start) > e.win {
			delete(s.windows, key)
		}
	}
}

// Size returns the number of live windows (for testing).
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

package blacklist

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-memory blacklist for demo/test use.
type MemoryProvider struct {
	mu      sync.RWMutex
	entries map[string]*Entry // type + "|" + value
}

// NewMemoryProvider creates an empty in-memory blacklist.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		entries: make(map[string]*Entry),
	}
}

// Add inserts or replaces a blacklist entry.
func (p *MemoryProvider) Add(entryType, value, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[entryType+"|"+value] = &Entry{
		Type:      entryType,
		Value:     value,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}

// Remove deletes a blacklist entry.
func (p *MemoryProvider) Remove(entryType, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, entryType+"|"+value)
}

func (p *MemoryProvider) Lookup(_ context.Context, entryType, value string) (*Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[entryType+"|"+value]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

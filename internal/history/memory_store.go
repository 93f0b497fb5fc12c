package history

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-memory Provider for demo/test use.
// Seed it with the Add* methods; queries are deterministic for fixed seeds.
type MemoryProvider struct {
	mu            sync.RWMutex
	orders        map[string][]*Order
	sessions      map[string][]*Session
	devices       map[string][]*Device
	profiles      map[string]*BehaviorProfile
	users         map[string]*User
	verifications map[string]*Verification
	payments      map[string]map[string]bool // userID → hashed instrument IDs
}

// NewMemoryProvider creates an empty in-memory history provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		orders:        make(map[string][]*Order),
		sessions:      make(map[string][]*Session),
		devices:       make(map[string][]*Device),
		profiles:      make(map[string]*BehaviorProfile),
		users:         make(map[string]*User),
		verifications: make(map[string]*Verification),
		payments:      make(map[string]map[string]bool),
	}
}

// AddOrder records a past order.
func (p *MemoryProvider) AddOrder(o *Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *o
	p.orders[o.UserID] = append(p.orders[o.UserID], &cp)
}

// AddSession records a past session.
func (p *MemoryProvider) AddSession(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *s
	p.sessions[s.UserID] = append(p.sessions[s.UserID], &cp)
}

// AddDevice registers a known device fingerprint.
func (p *MemoryProvider) AddDevice(d *Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *d
	p.devices[d.UserID] = append(p.devices[d.UserID], &cp)
}

// SetProfile sets the behavior profile for a user.
func (p *MemoryProvider) SetProfile(bp *BehaviorProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *bp
	p.profiles[bp.UserID] = &cp
}

// SetUser sets account metadata.
func (p *MemoryProvider) SetUser(u *User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *u
	p.users[u.ID] = &cp
}

// SetVerification sets verification status for a user.
func (p *MemoryProvider) SetVerification(v *Verification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *v
	p.verifications[v.UserID] = &cp
}

// AddPaymentMethod marks a hashed payment instrument as known for a user.
func (p *MemoryProvider) AddPaymentMethod(userID, hashedID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payments[userID] == nil {
		p.payments[userID] = make(map[string]bool)
	}
	p.payments[userID][hashedID] = true
}

func (p *MemoryProvider) RecentOrders(_ context.Context, userID string, window time.Duration) ([]*Order, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var result []*Order
	for _, o := range p.orders[userID] {
		if o.CreatedAt.After(cutoff) {
			cp := *o
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (p *MemoryProvider) RecentSessions(_ context.Context, userID string, window time.Duration) ([]*Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var result []*Session
	for _, s := range p.sessions[userID] {
		if s.CreatedAt.After(cutoff) {
			cp := *s
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (p *MemoryProvider) KnownDevices(_ context.Context, userID string) ([]*Device, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Device, 0, len(p.devices[userID]))
	for _, d := range p.devices[userID] {
		cp := *d
		result = append(result, &cp)
	}
	return result, nil
}

func (p *MemoryProvider) BehaviorProfile(_ context.Context, userID string) (*BehaviorProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	bp, ok := p.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *bp
	return &cp, nil
}

func (p *MemoryProvider) GetUser(_ context.Context, userID string) (*User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (p *MemoryProvider) Verifications(_ context.Context, userID string) (*Verification, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.verifications[userID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (p *MemoryProvider) IsKnownPaymentMethod(_ context.Context, userID, hashedID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.payments[userID][hashedID], nil
}

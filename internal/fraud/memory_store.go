package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses []*Analysis
	byID     map[string]*Analysis
}

// NewMemoryStore creates an in-memory fraud analysis store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Analysis),
	}
}

func (s *MemoryStore) Record(_ context.Context, analysis *Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyAnalysis(analysis)
	s.analyses = append(s.analyses, cp)
	s.byID[cp.ID] = cp
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var result []*Analysis
	// Iterate in reverse for descending order
	for i := len(s.analyses) - 1; i >= 0 && len(result) < limit; i-- {
		a := s.analyses[i]
		if a.UserID != userID {
			continue
		}
		result = append(result, copyAnalysis(a))
	}
	return result, nil
}

func (s *MemoryStore) MarkReviewed(_ context.Context, id, reviewer string, status Status, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("fraud analysis %s not found", id)
	}
	now := time.Now()
	a.ReviewedAt = &now
	a.ReviewedBy = reviewer
	a.Status = status
	a.Notes = notes
	return nil
}

// Analyses returns all stored analyses (for testing).
func (s *MemoryStore) Analyses() []*Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		result = append(result, copyAnalysis(a))
	}
	return result
}

func copyAnalysis(a *Analysis) *Analysis {
	cp := *a
	cp.RiskFactors = make(map[string]float64, len(a.RiskFactors))
	for k, v := range a.RiskFactors {
		cp.RiskFactors[k] = v
	}
	cp.Rules = append([]string(nil), a.Rules...)
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

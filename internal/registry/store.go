package registry

import (
	"context"
	"sync"
	"time"
)

// Store persists patterns. Implementations must support concurrent
// inserts from different specs; rows are never updated in place except
// for the status column, which only ever moves forward.
type Store interface {
	// Insert appends a new pattern.
	Insert(ctx context.Context, p Pattern) error

	// Get retrieves a pattern by id. Returns ErrPatternNotFound when absent.
	Get(ctx context.Context, id string) (Pattern, error)

	// List returns all patterns in insertion order, optionally filtered
	// by status ("" means all).
	List(ctx context.Context, status PatternStatus) ([]Pattern, error)

	// SetStatus advances a pattern's status, recording the promotion
	// time when status is promoted. Promoted patterns are immutable;
	// attempts to change them fail with ErrPatternImmutable.
	SetStatus(ctx context.Context, id string, status PatternStatus, promotedAt *time.Time) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string]Pattern
	order    []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[string]Pattern)}
}

// Insert appends a new pattern.
func (s *MemoryStore) Insert(ctx context.Context, p Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patterns[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.patterns[p.ID] = p
	return nil
}

// Get retrieves a pattern by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return Pattern{}, ErrPatternNotFound
	}
	return p, nil
}

// List returns patterns in insertion order.
func (s *MemoryStore) List(ctx context.Context, status PatternStatus) ([]Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pattern, 0, len(s.order))
	for _, id := range s.order {
		p := s.patterns[id]
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetStatus advances a pattern's status.
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status PatternStatus, promotedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return ErrPatternNotFound
	}
	if p.Status == StatusPromoted {
		return ErrPatternImmutable
	}
	p.Status = status
	if promotedAt != nil {
		t := *promotedAt
		p.PromotedAt = &t
	}
	s.patterns[id] = p
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

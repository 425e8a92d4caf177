package identity

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"fundihub.org/internal/auth"
)

// InMemoryStore implements UserStore with in-process concurrency safety.
// It serves as the degraded-mode fallback store and as a test fixture.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*UserRecord
	byEmail map[string]*UserRecord
}

var _ UserStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]*UserRecord),
		byEmail: make(map[string]*UserRecord),
	}
}

// Put inserts or replaces a record.
func (s *InMemoryStore) Put(rec *UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.byID[cp.ID] = &cp
	s.byEmail[normalizeEmail(cp.Email)] = &cp
}

func (s *InMemoryStore) LookupByID(ctx context.Context, id string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) LookupByEmail(ctx context.Context, email string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

// SetProviderStatus mirrors the onboarding lifecycle state onto the stored
// record, matching the write contract of the Postgres store.
func (s *InMemoryStore) SetProviderStatus(ctx context.Context, id string, status auth.ProviderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	rec.ProviderStatus = status
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Health is a process-wide reachability flag for the primary store. Reads
// are lock-free so the resolver can consult it on every request.
type Health struct {
	reachable atomic.Bool
}

var _ StoreHealth = (*Health)(nil)

// NewHealth creates a flag with the given initial state.
func NewHealth(reachable bool) *Health {
	h := &Health{}
	h.reachable.Store(reachable)
	return h
}

// Reachable implements StoreHealth.
func (h *Health) Reachable() bool { return h.reachable.Load() }

// SetReachable records the latest probe result.
func (h *Health) SetReachable(v bool) { h.reachable.Store(v) }

package provider

import (
	"context"
	"sort"
	"sync"

	"fundihub.org/internal/auth"
)

// InMemoryStore implements Store with in-process concurrency safety. It
// backs tests and degraded single-process deployments.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[string]*Application
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[string]*Application)}
}

func (s *InMemoryStore) Create(ctx context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ProviderID]; ok {
		return ErrExists
	}
	s.apps[app.ProviderID] = app.Clone()
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, providerID string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[providerID]
	if !ok {
		return nil, ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ProviderID]; !ok {
		return ErrNotFound
	}
	s.apps[app.ProviderID] = app.Clone()
	return nil
}

func (s *InMemoryStore) ListByStatus(ctx context.Context, status auth.ProviderStatus) ([]*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Application
	for _, app := range s.apps {
		if status == auth.ProviderNone || app.Status == status {
			out = append(out, app.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

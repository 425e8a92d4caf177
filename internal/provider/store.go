package provider

import (
	"context"

	"fundihub.org/internal/auth"
)

// Store describes persistence required by the onboarding lifecycle.
// Implementations must return ErrNotFound for unknown providers and
// ErrExists on duplicate creation. Applications are never deleted.
type Store interface {
	Create(ctx context.Context, app *Application) error
	Get(ctx context.Context, providerID string) (*Application, error)
	Update(ctx context.Context, app *Application) error
	ListByStatus(ctx context.Context, status auth.ProviderStatus) ([]*Application, error)
}

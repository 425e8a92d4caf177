// Package identity resolves verified credential claims into a Principal,
// either by synthesizing the reserved platform admin or by a user-store
// lookup with a clearly-labeled fallback during primary outages.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/obs"
)

var (
	ErrUserNotFound    = errors.New("identity: user not found")
	ErrUserDeactivated = errors.New("identity: user deactivated")
)

// UserRecord is the stored shape of a marketplace user. Admin principals
// are never persisted here; they are synthesized from trusted claims.
type UserRecord struct {
	ID             string
	Email          string
	DisplayName    string
	PasswordHash   string
	Role           auth.RoleKind
	Active         bool
	EmailVerified  bool
	ProviderStatus auth.ProviderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserStore is the lookup contract shared by the primary and fallback
// stores. Implementations return ErrUserNotFound for unknown keys.
type UserStore interface {
	LookupByID(ctx context.Context, id string) (*UserRecord, error)
	LookupByEmail(ctx context.Context, email string) (*UserRecord, error)
}

// StoreHealth reports whether the primary store is reachable. Checked
// synchronously on every resolution; implementations must not block.
type StoreHealth interface {
	Reachable() bool
}

// Source labels which path produced a principal, for logs and telemetry.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceAdmin    Source = "admin"
)

// Resolver turns verified claims into a Principal.
type Resolver struct {
	primary      UserStore
	fallback     UserStore
	health       StoreHealth
	adminSubject string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFallbackStore installs the non-authoritative store consulted when the
// primary is unreachable.
func WithFallbackStore(store UserStore, health StoreHealth) ResolverOption {
	return func(r *Resolver) {
		r.fallback = store
		r.health = health
	}
}

// NewResolver constructs a Resolver. adminSubject is the reserved sentinel
// subject id that, together with the admin claim flag, authorizes
// synthesizing the platform admin.
func NewResolver(primary UserStore, adminSubject string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		primary:      primary,
		adminSubject: strings.TrimSpace(adminSubject),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the Principal for the request. The admin path requires
// both the admin flag and the sentinel subject id; any single-field
// deviation falls through to the store lookup.
func (r *Resolver) Resolve(ctx context.Context, claims *auth.Claims) (*auth.Principal, error) {
	if claims == nil {
		return nil, ErrUserNotFound
	}

	if claims.Admin && r.adminSubject != "" && claims.Subject == r.adminSubject {
		obs.ObserveIdentityResolution(string(SourceAdmin))
		return &auth.Principal{
			ID:            claims.Subject,
			Email:         claims.Email,
			DisplayName:   claims.DisplayName,
			Role:          auth.RoleAdmin,
			Active:        true,
			EmailVerified: true,
		}, nil
	}

	store, source := r.pickStore()
	if store == nil {
		return nil, ErrUserNotFound
	}
	if source == SourceFallback {
		// Fallback data is non-authoritative; make the degraded path
		// impossible to miss in logs.
		obs.LogRequest(map[string]any{
			"ts":      time.Now().UTC().Format(time.RFC3339Nano),
			"level":   "warn",
			"msg":     "identity_resolved_via_fallback_store",
			"subject": claims.Subject,
		})
	}
	obs.ObserveIdentityResolution(string(source))

	rec, err := store.LookupByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, ErrUserDeactivated
	}
	return rec.Principal(), nil
}

func (r *Resolver) pickStore() (UserStore, Source) {
	if r.health != nil && !r.health.Reachable() && r.fallback != nil {
		return r.fallback, SourceFallback
	}
	if r.primary == nil && r.fallback != nil {
		return r.fallback, SourceFallback
	}
	return r.primary, SourcePrimary
}

// Users returns the store currently selected for lookups, tagged with its
// source. Route handlers use it for email lookups on the token endpoint.
func (r *Resolver) Users() (UserStore, Source) {
	return r.pickStore()
}

// Principal converts the stored record into the request-scoped identity.
func (rec *UserRecord) Principal() *auth.Principal {
	return &auth.Principal{
		ID:             rec.ID,
		Email:          rec.Email,
		DisplayName:    rec.DisplayName,
		Role:           rec.Role,
		Active:         rec.Active,
		EmailVerified:  rec.EmailVerified,
		ProviderStatus: rec.ProviderStatus,
	}
}

// Package httpapi is the HTTP surface of the access-control core: request
// middleware (authentication, rate limiting, logging) ahead of the provider
// onboarding and admin review routes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/identity"
	"fundihub.org/internal/obs"
	"fundihub.org/internal/provider"
	"fundihub.org/internal/ratelimit"
)

// ReadyProbe checks readiness (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// StatusMirror propagates lifecycle changes onto stored user records so
// freshly resolved principals carry the new provider status.
type StatusMirror interface {
	SetProviderStatus(ctx context.Context, id string, status auth.ProviderStatus) error
}

// Config wires the API's collaborators.
type Config struct {
	Verifier   *auth.Verifier
	Resolver   *identity.Resolver
	Providers  *provider.Service
	Limiter    *ratelimit.Limiter
	Mirror     StatusMirror
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	verifier   *auth.Verifier
	resolver   *identity.Resolver
	providers  *provider.Service
	limiter    *ratelimit.Limiter
	mirror     StatusMirror
	readyProbe ReadyProbe
	version    string
}

// New builds the router.
func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		verifier:   cfg.Verifier,
		resolver:   cfg.Resolver,
		providers:  cfg.Providers,
		limiter:    cfg.Limiter,
		mirror:     cfg.Mirror,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("POST /v1/auth/token", a.IssueToken)
	a.mux.HandleFunc("GET /v1/me", a.Me)

	// provider onboarding
	a.mux.HandleFunc("POST /v1/providers/{id}/application", a.RegisterApplication)
	a.mux.HandleFunc("GET /v1/providers/{id}/application", a.GetApplication)
	a.mux.HandleFunc("POST /v1/providers/{id}/application/documents", a.RecordDocument)
	a.mux.HandleFunc("POST /v1/providers/{id}/application/portfolio", a.AddPortfolioItem)
	a.mux.HandleFunc("POST /v1/providers/{id}/application/submit", a.SubmitApplication)
	a.mux.HandleFunc("POST /v1/providers/{id}/application/resubmit", a.ResubmitApplication)

	// admin review
	a.mux.HandleFunc("GET /v1/admin/applications", a.ListApplications)
	a.mux.HandleFunc("POST /v1/admin/applications/{id}/approve", a.ApproveApplication)
	a.mux.HandleFunc("POST /v1/admin/applications/{id}/reject", a.RejectApplication)
	a.mux.HandleFunc("POST /v1/admin/applications/{id}/documents/{kind}/verify", a.VerifyDocument)

	return a
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

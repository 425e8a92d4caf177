package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"fundihub.org/internal/audit"
	"fundihub.org/internal/auth"
	"fundihub.org/internal/identity"
	"fundihub.org/internal/obs"
)

const (
	authHeader  = "Authorization"
	bearer      = "Bearer "
	tokenCookie = "token"
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
}

// withAuth verifies the bearer credential, resolves the principal and
// attaches it to the request context. End users only ever see a uniform
// denial; the specific failure kind goes to the audit log and metrics.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractToken(r)
		if !ok {
			a.denyAuth(w, r, http.StatusUnauthorized, "missing_credential", "")
			return
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			a.denyAuth(w, r, http.StatusUnauthorized, credentialFailureKind(err), "")
			return
		}

		principal, err := a.resolver.Resolve(r.Context(), claims)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrUserNotFound):
				a.denyAuth(w, r, http.StatusUnauthorized, "user_not_found", claims.Subject)
			case errors.Is(err, identity.ErrUserDeactivated):
				a.denyAuth(w, r, http.StatusForbidden, "user_deactivated", claims.Subject)
			default:
				respondError(w, r, http.StatusInternalServerError, "internal", "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) denyAuth(w http.ResponseWriter, r *http.Request, code int, kind, subject string) {
	obs.ObserveAuthFailure(kind)
	fields := map[string]any{"kind": kind, "path": r.URL.Path}
	if subject != "" {
		fields["subject"] = subject
	}
	_ = audit.LogEvent(r.Context(), "auth.denied", fields)
	respondDenied(w, r, code)
}

func credentialFailureKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "malformed"
	}
}

// extractToken reads the credential from the Authorization header or, if
// absent, from the token cookie.
func extractToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
			return "", false
		}
		token := strings.TrimSpace(header[len(bearer):])
		return token, token != ""
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		token := strings.TrimSpace(c.Value)
		return token, token != ""
	}
	return "", false
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

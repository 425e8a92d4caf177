package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fundihub.org/internal/audit"
	"fundihub.org/internal/auth"
	"fundihub.org/internal/identity"
	"fundihub.org/internal/obs"
	"fundihub.org/internal/ratelimit"
)

const (
	actionIssueToken = "auth.token"
	issueTokenMax    = 10
	issueTokenWindow = 15 * time.Minute
)

// IssueToken authenticates email+password and returns a bearer credential.
// Attempts are rate limited per email so the endpoint cannot be used as a
// password oracle.
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}

	if err := a.limiter.Check(email, actionIssueToken, issueTokenMax, issueTokenWindow); err != nil {
		a.respondRateLimited(w, r, err, actionIssueToken)
		return
	}

	users, source := a.resolver.Users()
	rec, err := users.LookupByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			a.denyAuth(w, r, http.StatusUnauthorized, "user_not_found", email)
			return
		}
		respondError(w, r, http.StatusInternalServerError, "internal", "authentication error")
		return
	}
	if !rec.Active {
		a.denyAuth(w, r, http.StatusForbidden, "user_deactivated", rec.ID)
		return
	}
	if err := auth.VerifyPassword(rec.PasswordHash, req.Password); err != nil {
		a.denyAuth(w, r, http.StatusUnauthorized, "bad_password", rec.ID)
		return
	}

	token, expiresAt, err := a.verifier.Issue(rec.ID, rec.Email, rec.DisplayName, false)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "internal", "authentication error")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.token_issued", map[string]any{
		"subject": rec.ID,
		"source":  string(source),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// Me returns the resolved principal for the presented credential.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, principalView(principal))
}

func principalView(p *auth.Principal) map[string]any {
	view := map[string]any{
		"id":             p.ID,
		"email":          p.Email,
		"display_name":   p.DisplayName,
		"role":           p.Role.String(),
		"active":         p.Active,
		"email_verified": p.EmailVerified,
	}
	if p.Role == auth.RoleProvider {
		view["provider_status"] = string(p.ProviderStatus)
	}
	return view
}

// respondRateLimited renders a 429 with a retry hint. Limit hits are normal
// traffic shaping, counted but never logged as errors.
func (a *API) respondRateLimited(w http.ResponseWriter, r *http.Request, err error, action string) {
	obs.ObserveRateLimited(action)
	var limited *ratelimit.LimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", retryAfterHeader(limited.RetryAfter))
	}
	respondError(w, r, http.StatusTooManyRequests, "rate_limited", "too many attempts, slow down")
}

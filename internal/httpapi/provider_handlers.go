package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fundihub.org/internal/audit"
	"fundihub.org/internal/auth"
	"fundihub.org/internal/obs"
	"fundihub.org/internal/provider"
	"fundihub.org/internal/ratelimit"
)

const (
	actionSubmit = "application.submit"
	submitMax    = 5
	submitWindow = 15 * time.Minute
)

// RegisterApplication opens an empty onboarding application for the
// authenticated provider. Registering on behalf of someone else renders as
// not found, matching the read path.
func (a *API) RegisterApplication(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")
	if principal.Role != auth.RoleAdmin && principal.ID != id {
		respondNotFound(w, r)
		return
	}
	if err := auth.RequireRole(principal, auth.RoleProvider, auth.RoleAdmin); err != nil {
		a.respondGuardError(w, r, err)
		return
	}
	app, err := a.providers.Register(r.Context(), id)
	if err != nil {
		a.respondProviderError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "provider.application_registered", map[string]any{
		"provider_id": app.ProviderID,
	})
	writeJSON(w, http.StatusCreated, app)
}

// GetApplication returns the onboarding application. Owner or admin only;
// anyone else gets the same 404 as a missing application.
func (a *API) GetApplication(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	app, err := a.providers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondProviderError(w, r, err)
		return
	}
	if err := auth.RequireOwnership(principal, app); err != nil {
		respondNotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// RecordDocument stores the uploaded flag for one checklist document as
// reported by the blob-store collaborator.
func (a *API) RecordDocument(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	kind, err := provider.ParseDocumentKind(req.Kind)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	app, err := a.providers.RecordDocument(r.Context(), principal, r.PathValue("id"), kind)
	if err != nil {
		a.respondProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// AddPortfolioItem appends one optional work sample.
func (a *API) AddPortfolioItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	app, err := a.providers.AddPortfolioItem(r.Context(), principal, r.PathValue("id"), req.URL)
	if err != nil {
		a.respondProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// SubmitApplication moves a complete checklist into review. Requires a
// verified email and is rate limited per principal.
func (a *API) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	if err := auth.RequirePermission(principal, auth.PermApplicationSubmit); err != nil {
		respondError(w, r, http.StatusForbidden, "forbidden", "provider role required")
		return
	}
	if err := auth.RequireVerifiedEmail(principal); err != nil {
		respondError(w, r, http.StatusForbidden, "forbidden", "email verification required")
		return
	}
	if err := a.limiter.Check(principal.ID, actionSubmit, submitMax, submitWindow); err != nil {
		a.respondRateLimited(w, r, err, actionSubmit)
		return
	}
	app, err := a.providers.Submit(r.Context(), principal, r.PathValue("id"))
	a.finishTransition(w, r, app, err, provider.EventSubmit)
}

// ResubmitApplication re-enters review after a rejection.
func (a *API) ResubmitApplication(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondDenied(w, r, http.StatusUnauthorized)
		return
	}
	if err := auth.RequirePermission(principal, auth.PermApplicationSubmit); err != nil {
		respondError(w, r, http.StatusForbidden, "forbidden", "provider role required")
		return
	}
	if err := a.limiter.Check(principal.ID, actionSubmit, submitMax, submitWindow); err != nil {
		a.respondRateLimited(w, r, err, actionSubmit)
		return
	}
	app, err := a.providers.Resubmit(r.Context(), principal, r.PathValue("id"))
	a.finishTransition(w, r, app, err, provider.EventResubmit)
}

// ListApplications is the admin review queue, optionally filtered by
// ?status=.
func (a *API) ListApplications(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.RequirePermission(principal, auth.PermApplicationReview); err != nil {
		a.respondGuardError(w, r, err)
		return
	}
	status := auth.ProviderStatus(r.URL.Query().Get("status"))
	apps, err := a.providers.ListByStatus(r.Context(), status)
	if err != nil {
		a.respondProviderError(w, r, err)
		return
	}
	if apps == nil {
		apps = []*provider.Application{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// ApproveApplication finalizes a successful review.
func (a *API) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.RequirePermission(principal, auth.PermApplicationReview); err != nil {
		a.respondGuardError(w, r, err)
		return
	}
	app, err := a.providers.Approve(r.Context(), principal, r.PathValue("id"))
	a.finishTransition(w, r, app, err, provider.EventApprove)
}

// RejectApplication records a failed review with its mandatory reason.
func (a *API) RejectApplication(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.RequirePermission(principal, auth.PermApplicationReview); err != nil {
		a.respondGuardError(w, r, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	app, err := a.providers.Reject(r.Context(), principal, r.PathValue("id"), req.Reason)
	a.finishTransition(w, r, app, err, provider.EventReject)
}

// VerifyDocument flips the per-document verified flag during review.
func (a *API) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.RequirePermission(principal, auth.PermApplicationReview); err != nil {
		a.respondGuardError(w, r, err)
		return
	}
	kind, err := provider.ParseDocumentKind(r.PathValue("kind"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var req struct {
		Verified *bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}
	app, err := a.providers.SetDocumentVerified(r.Context(), principal, r.PathValue("id"), kind, verified)
	if err != nil {
		a.respondProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// finishTransition records the outcome of a lifecycle transition attempt,
// mirrors the new status onto the user record, and renders the response.
func (a *API) finishTransition(w http.ResponseWriter, r *http.Request, app *provider.Application, err error, event provider.Event) {
	if err != nil {
		obs.ObserveProviderTransition(string(event), "rejected")
		if errors.Is(err, provider.ErrInvalidTransition) {
			_ = audit.LogEvent(r.Context(), "provider.transition_rejected", map[string]any{
				"event": string(event),
				"error": err.Error(),
			})
		}
		a.respondProviderError(w, r, err)
		return
	}
	obs.ObserveProviderTransition(string(event), "applied")
	_ = audit.LogEvent(r.Context(), "provider.transition_applied", map[string]any{
		"event":       string(event),
		"provider_id": app.ProviderID,
		"status":      string(app.Status),
	})
	if a.mirror != nil {
		if err := a.mirror.SetProviderStatus(r.Context(), app.ProviderID, app.Status); err != nil {
			obs.LogRequest(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "provider_status_mirror_failed",
				"error": err.Error(),
			})
		}
	}
	writeJSON(w, http.StatusOK, app)
}

// respondGuardError maps role-guard failures on admin routes; resource
// existence is not at issue there, so Forbidden stays a 403.
func (a *API) respondGuardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondDenied(w, r, http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		respondError(w, r, http.StatusForbidden, "forbidden", "insufficient role")
	default:
		respondError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

// respondProviderError maps service failures onto the response contract.
// Ownership failures on provider resources render as the not-found body so
// existence never leaks.
func (a *API) respondProviderError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *provider.InvalidTransitionError
	var limited *ratelimit.LimitedError
	switch {
	case errors.As(err, &invalid):
		respondError(w, r, http.StatusBadRequest, "invalid_transition",
			fmt.Sprintf("cannot %s in state %q", invalid.Event, invalid.Status))
	case errors.As(err, &limited):
		a.respondRateLimited(w, r, err, limited.Action)
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrForbidden):
		respondNotFound(w, r)
	case errors.Is(err, auth.ErrUnauthenticated):
		respondDenied(w, r, http.StatusUnauthorized)
	case errors.Is(err, provider.ErrExists):
		respondError(w, r, http.StatusConflict, "conflict", "application already exists")
	default:
		respondError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

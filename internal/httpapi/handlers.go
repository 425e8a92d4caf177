package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"fundihub.org/internal/audit"
)

const serviceName = "fundihub-api"

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the failure body: a machine-readable kind plus a
// human-readable message, tagged with the request id.
func respondError(w http.ResponseWriter, r *http.Request, code int, kind, msg string) {
	body := map[string]any{
		"kind":  kind,
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, code, body)
}

// respondDenied is the uniform caller-facing denial for credential and
// identity failures; the specific kind goes to the audit log only.
func respondDenied(w http.ResponseWriter, r *http.Request, code int) {
	respondError(w, r, code, "access_denied", "access denied")
}

// respondNotFound renders both "does not exist" and "exists but not yours"
// identically so responses never leak resource existence.
func respondNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, "not_found", "not found")
}

package httpapi

import (
	"net/http"
	"testing"
)

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "ok" || body["service"] != serviceName {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["version"] != "test" {
		t.Fatalf("expected configured version, got %v", body["version"])
	}
}

func TestReadyWithoutDatabase(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["status"] != "ready" {
		t.Fatal("expected ready status")
	}
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/info", "", "")
	if rr.Code == http.StatusOK {
		t.Fatal("unregistered path must not resolve")
	}
	rr = env.do(t, http.MethodGet, "/v1/info", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["name"] != serviceName || body["time"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
}

package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                        "/",
		"/metrics":                                "/metrics",
		"/v1/me":                                  "/v1/me",
		"/v1/providers/p-1/application":           "/v1/providers/:id/application",
		"/v1/providers/p-1/application/submit":    "/v1/providers/:id/application/submit",
		"/v1/admin/applications/p-1/approve":      "/v1/admin/applications/:id/approve",
		"/v1/admin/applications?status=pending":   "/v1/admin/applications",
		"/v1/providers/p-1/application?expand=me": "/v1/providers/:id/application",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

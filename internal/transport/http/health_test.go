package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_OK(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	HealthHandler(rec, req)

	res := rec.Result()
	if res.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}

	body := rec.Body.String()
	if body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		ping           PingFunc
		expectedStatus int
	}{
		{name: "reachable", ping: func(context.Context) error { return nil }, expectedStatus: http.StatusOK},
		{name: "unreachable", ping: func(context.Context) error { return errStore }, expectedStatus: http.StatusServiceUnavailable},
		{
			name: "deadline applied",
			ping: func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errStore
				}
				return nil
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			ReadyHandler(tt.ping).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

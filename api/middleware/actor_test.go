package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func TestActorContext(t *testing.T) {
	logg := testLogger(t)
	userID := uuid.New()

	var gotUser, gotRole string
	handler := ActorContext(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-ID", userID.String())
	req.Header.Set("X-User-Role", "Buyer")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotUser != userID.String() {
		t.Fatalf("user id = %q, want %q", gotUser, userID)
	}
	if gotRole != "buyer" {
		t.Fatalf("role = %q, want buyer", gotRole)
	}
}

func TestActorContextRejections(t *testing.T) {
	logg := testLogger(t)
	handler := ActorContext(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	tests := []struct {
		name string
		id   string
		role string
	}{
		{name: "missing id", id: "", role: "buyer"},
		{name: "malformed id", id: "not-a-uuid", role: "buyer"},
		{name: "missing role", id: uuid.NewString(), role: ""},
		{name: "unknown role", id: uuid.NewString(), role: "superuser"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tc.id != "" {
				req.Header.Set("X-User-ID", tc.id)
			}
			if tc.role != "" {
				req.Header.Set("X-User-Role", tc.role)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	logg := testLogger(t)
	handler := RequireRole("admin", logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/disputes", nil)
	req = req.WithContext(WithRole(req.Context(), "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/disputes", nil)
	req = req.WithContext(WithRole(req.Context(), "buyer"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("buyer status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

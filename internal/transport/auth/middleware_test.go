package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func scopeEcho(sessionOptional bool) http.Handler {
	return ScopeMiddleware(sessionOptional)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := GetScope(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(scope.BranchID + "/" + scope.SessionID))
	}))
}

func TestScopeMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		optional bool
		target   string
		headers  map[string]string
		code     int
		body     string
	}{
		{name: "headers", target: "/", headers: map[string]string{BranchHeader: "br-1", SessionHeader: "2025-26"}, code: http.StatusOK, body: "br-1/2025-26"},
		{name: "query params", target: "/?branch_id=br-2&session_id=2024-25", code: http.StatusOK, body: "br-2/2024-25"},
		{name: "header wins over query", target: "/?branch_id=br-2&session_id=s", headers: map[string]string{BranchHeader: "br-1"}, code: http.StatusOK, body: "br-1/s"},
		{name: "missing branch", target: "/?session_id=s", code: http.StatusUnauthorized},
		{name: "blank branch", target: "/", headers: map[string]string{BranchHeader: "  ", SessionHeader: "s"}, code: http.StatusUnauthorized},
		{name: "missing session", target: "/", headers: map[string]string{BranchHeader: "br-1"}, code: http.StatusUnauthorized},
		{name: "session optional", optional: true, target: "/?branch_id=br-1", code: http.StatusOK, body: "br-1/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			scopeEcho(tt.optional).ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("expected %d; got %d (%s)", tt.code, rec.Code, rec.Body.String())
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Fatalf("expected body %q; got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestGetScope_Missing(t *testing.T) {
	if _, err := GetScope(context.Background()); err != ErrNoScope {
		t.Fatalf("expected ErrNoScope; got %v", err)
	}
}

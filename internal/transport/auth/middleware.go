package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fee-ledger/internal/domain"
)

type ctxKey string

const ScopeKey ctxKey = "scope"

const (
	BranchHeader  = "X-Branch-ID"
	SessionHeader = "X-Session-ID"
)

var ErrNoScope = errors.New("branch scope not found in context")

// ScopeMiddleware resolves the branch and academic session of the request. Headers win over the
// branch_id and session_id query parameters, which exist for websocket clients that cannot set
// headers. Requests without a branch are refused; the session is optional only when
// sessionOptional is set.
func ScopeMiddleware(sessionOptional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := domain.Scope{
				BranchID:  firstNonEmpty(r.Header.Get(BranchHeader), r.URL.Query().Get("branch_id")),
				SessionID: firstNonEmpty(r.Header.Get(SessionHeader), r.URL.Query().Get("session_id")),
			}

			if scope.BranchID == "" {
				http.Error(w, "branch is required", http.StatusUnauthorized)
				return
			}
			if scope.SessionID == "" && !sessionOptional {
				http.Error(w, "academic session is required", http.StatusUnauthorized)
				return
			}

			ctx := WithScope(r.Context(), scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithScope(ctx context.Context, scope domain.Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

func GetScope(ctx context.Context) (domain.Scope, error) {
	scope, ok := ctx.Value(ScopeKey).(domain.Scope)
	if !ok || scope.BranchID == "" {
		return domain.Scope{}, ErrNoScope
	}
	return scope, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

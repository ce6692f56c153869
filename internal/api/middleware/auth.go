package middleware

import (
	"net/http"
	"strings"

	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/api/types"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

// TokenParser turns a bearer token into the caller it names.
type TokenParser interface {
	ParseToken(token string) (access.Principal, error)
}

// Auth validates a Bearer JWT and stores the caller's principal in the
// request context. Browsers' EventSource cannot set headers, so the token
// may also arrive as the access_token query parameter.
func Auth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			p, err := tokens.ParseToken(tokenStr)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(access.WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) string {
	ah := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return strings.TrimSpace(ah[len("Bearer "):])
	}
	return r.URL.Query().Get("access_token")
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, types.APIResponse{
		Error: &types.APIError{Code: string(appErr.CodeUnauthorized), Message: msg},
	})
}

// RequireAdmin rejects callers without the elevated role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := access.FromContext(r.Context())
		if !ok || !p.IsAdmin {
			writeJSON(w, http.StatusForbidden, types.APIResponse{
				Error: &types.APIError{Code: string(appErr.CodeForbidden), Message: "admin role required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

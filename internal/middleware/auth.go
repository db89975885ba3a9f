package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go-org-access/internal/model"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string, now time.Time) (model.AuthenticatedUser, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

type AuthMiddleware struct {
	auth authenticator
	now  func() time.Time
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, now: time.Now}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeUnauthorized(w, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		token := strings.TrimSpace(header[7:])
		identity, err := m.auth.Authenticate(r.Context(), token, m.now())
		if err != nil {
			writeUnauthorized(w, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles is a coarse gate in front of handlers that only some roles may
// reach at all. Fine-grained decisions stay with the authorization engine.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...model.Role) func(http.Handler) http.Handler {
	roleSet := map[model.Role]struct{}{}
	for _, role := range allowedRoles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, exists := roleSet[identity.Role]; !exists {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, identity model.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.AuthenticatedUser, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.AuthenticatedUser)
	return identity, ok
}

func writeUnauthorized(w http.ResponseWriter, code string, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, code, message)
}

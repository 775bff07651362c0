package corral

import (
	"context"
	"net/http"
	"strings"
)

// CookieName is the session cookie the auth server sets.
const CookieName = "better-auth.session_token"

type contextKey struct{}

// UserFromContext returns the user injected by Middleware, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}

// TokenFromRequest extracts the session token from the session cookie or,
// failing that, from a bearer Authorization header. The cookie wins when
// both are present.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware rejects requests without a valid session and injects the user
// into the request context for downstream handlers. Missing, unknown, and
// expired tokens all map to 401; a database failure maps to 500.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		user, err := v.ValidateSession(token)
		if err != nil {
			v.log.Error().Err(err).Msg("session validation failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

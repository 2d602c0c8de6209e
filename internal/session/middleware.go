package session

import (
	"context"
	"net/http"

	"github.com/trustflow/service-core/internal/respond"
)

type contextKey struct{}

// FromContext returns the identity attached by RequireSession, or nil.
func FromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(contextKey{}).(*Identity)
	return ident
}

// RequireSession rejects requests without a valid session cookie with 401.
// The console's client wrapper converts that 401 into a forced logout, so
// this is the server half of "the server considers my session invalid".
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.cookieName)
		if err != nil || c.Value == "" {
			respond.Err(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		ident, err := s.Validate(r.Context(), c.Value)
		if err != nil {
			http.SetCookie(w, s.ClearCookie())
			respond.Err(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission admits the request iff the caller holds ANY of the named
// permissions. Must run inside RequireSession.
func RequirePermission(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := FromContext(r.Context())
			if ident == nil {
				respond.Err(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !ident.HasAnyPermission(names...) {
				respond.Err(w, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePasswordRotated blocks accounts that have not rotated their default
// password. The console's interstitial keeps such users on the
// password-change page; this middleware enforces the same ordering on the
// API: authentication, then password policy, then the handler.
func RequirePasswordRotated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := FromContext(r.Context())
		if ident == nil {
			respond.Err(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !ident.DefaultPasswordChanged {
			respond.Err(w, http.StatusForbidden, "Password change required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ignite/popup-engine/internal/auth"
	"github.com/ignite/popup-engine/internal/pkg/httputil"
)

type contextKey string

const sessionKey contextKey = "session"

// RequireSession authenticates the caller via the session verifier and
// stores the session in the request context. Project-level access is
// checked per-activity in the handlers, after the activity (and thus its
// project) is known.
func RequireSession(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				httputil.Unauthorized(w)
				return
			}
			session, err := verifier.Authenticate(r)
			if err != nil {
				if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrSessionExpired) {
					httputil.Unauthorized(w)
					return
				}
				httputil.InternalError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom extracts the authenticated session from the context.
func SessionFrom(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(sessionKey).(*auth.Session)
	return s
}

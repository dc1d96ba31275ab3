/*
auth.go - Request authentication and role checks

PURPOSE:
  Resolves the calling user from HTTP Basic credentials (phone:password)
  and stores it in the request context. Downstream handlers only look at
  the user's role and approval flag.

MIDDLEWARE:
  Authenticate   401 without valid credentials, 403 when not yet approved
  RequireAdmin   403 unless the user may approve others

SEE ALSO:
  - accounts/accounts.go: Authenticate, roles
  - server.go: Where the middleware is mounted
*/
package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/shopbook/shopbook/accounts"
)

type ctxKey int

const userKey ctxKey = iota

// CurrentUser returns the authenticated user, or the zero User outside
// the authenticated routes.
func CurrentUser(ctx context.Context) accounts.User {
	u, _ := ctx.Value(userKey).(accounts.User)
	return u
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u accounts.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Authenticate checks Basic credentials against the accounts service.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		phone, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="shopbook"`)
			writeError(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}

		u, err := h.Accounts.Authenticate(r.Context(), phone, password)
		if err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Basic realm="shopbook"`)
			}
			h.Log.Debug("authentication rejected", zap.String("phone", phone), zap.Error(err))
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin must be mounted after Authenticate.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CurrentUser(r.Context()).CanApprove() {
			h.fail(w, r, accounts.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

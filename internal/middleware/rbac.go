package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// PermissionChecker resolves grants of a user
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, code string) (bool, error)
}

// RequirePermission lets the request through only when the authenticated user holds code.
// It must run after Auth.
func RequirePermission(checker PermissionChecker, log zerolog.Logger, code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			ok, err := checker.HasPermission(r.Context(), userID, code)
			if err != nil {
				log.Error().Err(err).Str("user_id", userID).Str("permission", code).Msg("permission lookup failed")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !ok {
				writeError(w, http.StatusForbidden, "Missing permission "+code)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

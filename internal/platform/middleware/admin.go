package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"applygate/pkg/requestcontext"
)

// RequireAdminToken gates /admin routes behind a shared token. Only the bcrypt
// hash of the token is configured, so a leaked config file does not leak the
// credential itself.
func RequireAdminToken(tokenBcryptHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if tokenBcryptHash == "" {
				logger.WarnContext(ctx, "admin surface disabled - no token hash configured",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "admin surface disabled")
				return
			}
			token := r.Header.Get("X-Admin-Token")
			if err := bcrypt.CompareHashAndPassword([]byte(tokenBcryptHash), []byte(token)); err != nil {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

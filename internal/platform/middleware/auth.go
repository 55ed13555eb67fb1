package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "applygate/pkg/domain"
	"applygate/pkg/requestcontext"
)

// JWTValidator defines the interface for validating session tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID    id.UserID
	SessionID id.SessionID
}

// SessionChecker reports whether a session is still active. Forced logout on
// deactivation works by invalidating the session here, so a token that is
// cryptographically valid can still be rejected.
type SessionChecker interface {
	IsActive(ctx context.Context, sessionID id.SessionID) (bool, error)
}

// RequireAuth validates the bearer token, checks the session registry, and
// stores the authenticated identity in the request context.
func RequireAuth(validator JWTValidator, sessions SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if sessions != nil {
				active, err := sessions.IsActive(ctx, claims.SessionID)
				if err != nil {
					logger.ErrorContext(ctx, "session registry check failed",
						"error", err,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusInternalServerError, "internal", "session check failed")
					return
				}
				if !active {
					logger.WarnContext(ctx, "unauthorized access - session invalidated",
						"session_id", claims.SessionID.String(),
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Session is no longer active")
					return
				}
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			ctx = requestcontext.WithSessionID(ctx, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes a JSON error response with the given status code and details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

// Package gate enforces the lifecycle session boundary: an account with a
// pending deactivation request is forced out immediately, and a deactivated
// account can only reach the reactivation flow and logout.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"applygate/internal/lifecycle"
	lifecyclemetrics "applygate/internal/lifecycle/metrics"
	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
	"applygate/pkg/requestcontext"
)

// AccountReader is the slice of the account store the gate needs.
type AccountReader interface {
	FindByID(ctx context.Context, userID id.UserID) (*lifecycle.Account, error)
}

// SessionInvalidator force-logs-out every session a user holds.
type SessionInvalidator interface {
	InvalidateUser(ctx context.Context, userID id.UserID) error
}

// allowedWhileDeactivated are the route prefixes a deactivated account may
// still reach.
var allowedWhileDeactivated = []string{
	"/account/reactivation",
	"/auth/logout",
}

// Middleware checks the lifecycle state of the authenticated account on
// every request. Runs after RequireAuth so the user ID is in context.
func Middleware(accounts AccountReader, sessions SessionInvalidator, m *lifecyclemetrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if userID.IsNil() {
				next.ServeHTTP(w, r)
				return
			}

			account, err := accounts.FindByID(ctx, userID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				logger.ErrorContext(ctx, "lifecycle gate lookup failed",
					"user_id", userID.String(),
					"error", err.Error(),
				)
				writeJSON(w, http.StatusInternalServerError, "internal", "account check failed")
				return
			}

			if account.DeactivationPending() {
				// The grace period must not be usable for normal work.
				if err := sessions.InvalidateUser(ctx, userID); err != nil {
					logger.ErrorContext(ctx, "forced logout failed",
						"user_id", userID.String(),
						"error", err.Error(),
					)
				}
				m.RecordForcedLogout()
				logger.InfoContext(ctx, "forced logout: deactivation pending", "user_id", userID.String())
				writeJSON(w, http.StatusUnauthorized, "account_deactivation_pending",
					"Your account is scheduled for deactivation. Please contact support.")
				return
			}

			if account.IsDeactivated && !isAllowedWhileDeactivated(r.URL.Path) {
				writeJSON(w, http.StatusForbidden, "account_deactivated",
					"Your account is deactivated. Only reactivation and logout are available.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowedWhileDeactivated(path string) bool {
	for _, prefix := range allowedWhileDeactivated {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

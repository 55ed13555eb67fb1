// Package httptransport assembles the public HTTP surface from the module
// handlers and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ledgerhandler "applygate/internal/ledger/handler"
	lifecyclehandler "applygate/internal/lifecycle/handler"
	paywallhandler "applygate/internal/paywall/handler"
	"applygate/internal/platform/middleware"
	"applygate/internal/scheduler"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/httputil"
	"applygate/pkg/requestcontext"
)

// SchedulerRunner triggers one deactivation batch on demand.
type SchedulerRunner interface {
	Run(ctx context.Context) (*scheduler.Report, error)
}

// Deps is everything the router composes.
type Deps struct {
	Logger         *slog.Logger
	Paywall        *paywallhandler.Handler
	Lifecycle      *lifecyclehandler.Handler
	Ledger         *ledgerhandler.Handler
	Scheduler      SchedulerRunner
	JWTValidator   middleware.JWTValidator
	Sessions       middleware.SessionChecker
	AdminTokenHash string
}

// NewRouter wires all endpoints: the viewer paywall surface, the account
// lifecycle flow, the admin surface and the operational probes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	d.Paywall.Register(r)
	d.Lifecycle.Register(r)
	d.Ledger.Register(r)

	sr := chi.NewRouter()
	sr.Use(middleware.Recovery(d.Logger))
	sr.Use(middleware.RequestID)
	sr.Use(middleware.RequestTime)
	sr.Use(middleware.Logger(d.Logger))
	sr.Use(middleware.Timeout(5 * time.Minute))
	sr.Use(middleware.RequireAuth(d.JWTValidator, d.Sessions, d.Logger))
	sr.Use(middleware.RequireAdminToken(d.AdminTokenHash, d.Logger))
	sr.Post("/run", func(w http.ResponseWriter, req *http.Request) {
		report, err := d.Scheduler.Run(req.Context())
		if err != nil {
			d.Logger.ErrorContext(req.Context(), "scheduler run failed",
				"request_id", requestcontext.RequestID(req.Context()),
				"error", err.Error(),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "scheduler run failed"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, report)
	})
	r.Mount("/admin/scheduler", sr)

	return r
}

// Package handler exposes the disclosure gate over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"applygate/internal/paywall"
	"applygate/internal/paywall/service"
	"applygate/internal/platform/metrics"
	"applygate/internal/platform/middleware"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/httputil"
	"applygate/pkg/requestcontext"
)

// Service defines the disclosure operations the handler needs.
type Service interface {
	RequestDisclosure(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey paywall.FieldKey, cost int64) (*service.Result, error)
	Disclosed(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID) ([]*paywall.Grant, error)
}

// BalanceService reports the viewer's current credit balance.
type BalanceService interface {
	Balance(ctx context.Context, userID id.UserID) (int64, error)
}

// Handler handles paywall endpoints.
type Handler struct {
	logger         *slog.Logger
	paywall        Service
	ledger         BalanceService
	metrics        *metrics.Metrics
	jwtValidator   middleware.JWTValidator
	sessions       middleware.SessionChecker
	gate           func(http.Handler) http.Handler
	disclosureCost int64
}

func New(
	paywallSvc Service,
	ledgerSvc BalanceService,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	sessions middleware.SessionChecker,
	gate func(http.Handler) http.Handler,
	disclosureCost int64,
) *Handler {
	return &Handler{
		logger:         logger,
		paywall:        paywallSvc,
		ledger:         ledgerSvc,
		metrics:        m,
		jwtValidator:   jwtValidator,
		sessions:       sessions,
		gate:           gate,
		disclosureCost: disclosureCost,
	}
}

// Register registers the paywall routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	pr := chi.NewRouter()
	pr.Use(middleware.Recovery(h.logger))
	pr.Use(middleware.RequestID)
	pr.Use(middleware.RequestTime)
	pr.Use(middleware.Logger(h.logger))
	pr.Use(middleware.Timeout(30 * time.Second))
	pr.Use(middleware.ContentTypeJSON)
	pr.Use(middleware.Latency(h.metrics))
	pr.Use(middleware.RequireAuth(h.jwtValidator, h.sessions, h.logger))
	if h.gate != nil {
		pr.Use(h.gate)
	}
	pr.Get("/paywall/balance", h.handleBalance)
	pr.Post("/paywall/disclose", h.handleDisclose)
	pr.Get("/paywall/disclosed", h.handleDisclosed)

	r.Mount("/", pr)
}

type discloseRequest struct {
	ApplicationID string `json:"application_id"`
	FieldKey      string `json:"field_key"`
}

type discloseResponse struct {
	FieldKey string `json:"field_key"`
	Charged  bool   `json:"charged"`
	Cost     int64  `json:"cost,omitempty"`
}

func (h *Handler) handleDisclose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := requestcontext.UserID(ctx)
	if viewerID.IsNil() {
		h.logger.ErrorContext(ctx, "user ID missing from context despite auth middleware")
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req discloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	applicationID, err := id.ParseApplicationID(req.ApplicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fieldKey, err := paywall.ParseFieldKey(req.FieldKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.paywall.RequestDisclosure(ctx, viewerID, applicationID, fieldKey, h.disclosureCost)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInsufficientBalance) {
			httputil.WriteError(w, err)
			return
		}
		if dErrors.HasCode(err, dErrors.CodeBadRequest) || dErrors.HasCode(err, dErrors.CodeInvalidInput) || dErrors.HasCode(err, dErrors.CodeValidation) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to disclose field",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to disclose field"))
		return
	}

	resp := discloseResponse{FieldKey: fieldKey.String(), Charged: res.Charged}
	if res.Charged {
		resp.Cost = h.disclosureCost
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := requestcontext.UserID(ctx)
	if viewerID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	balance, err := h.ledger.Balance(ctx, viewerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compute balance",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to compute balance"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

type disclosedGrant struct {
	FieldKey  string    `json:"field_key"`
	Cost      int64     `json:"cost"`
	GrantedAt time.Time `json:"granted_at"`
}

func (h *Handler) handleDisclosed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := requestcontext.UserID(ctx)
	if viewerID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	applicationID, err := id.ParseApplicationID(r.URL.Query().Get("application_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	grants, err := h.paywall.Disclosed(ctx, viewerID, applicationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list disclosures",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list disclosures"))
		return
	}

	out := make([]disclosedGrant, 0, len(grants))
	for _, g := range grants {
		out = append(out, disclosedGrant{
			FieldKey:  g.FieldKey.String(),
			Cost:      g.Cost,
			GrantedAt: g.GrantedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"disclosed": out})
}

// Package handler exposes the account lifecycle over HTTP: the user-facing
// deactivation flow and the admin review queue.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"applygate/internal/lifecycle"
	"applygate/internal/lifecycle/service"
	"applygate/internal/platform/metrics"
	"applygate/internal/platform/middleware"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/httputil"
	"applygate/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	GetAccount(ctx context.Context, userID id.UserID) (*lifecycle.Account, error)
	RequestDeactivation(ctx context.Context, userID id.UserID) (*lifecycle.Account, error)
	CancelDeactivation(ctx context.Context, userID id.UserID) (*lifecycle.Account, error)
	RequestReactivation(ctx context.Context, userID id.UserID, reason string) (*lifecycle.ReactivationRequest, error)
	ListPendingReactivations(ctx context.Context) ([]*service.PendingReactivation, error)
	ReviewReactivation(ctx context.Context, reqID id.ReactivationID, decision lifecycle.ReviewDecision, adminNotes string) (*lifecycle.ReactivationRequest, error)
}

// Handler handles lifecycle endpoints.
type Handler struct {
	logger         *slog.Logger
	lifecycle      Service
	metrics        *metrics.Metrics
	jwtValidator   middleware.JWTValidator
	sessions       middleware.SessionChecker
	adminTokenHash string
}

func New(
	lifecycleSvc Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	sessions middleware.SessionChecker,
	adminTokenHash string,
) *Handler {
	return &Handler{
		logger:         logger,
		lifecycle:      lifecycleSvc,
		metrics:        m,
		jwtValidator:   jwtValidator,
		sessions:       sessions,
		adminTokenHash: adminTokenHash,
	}
}

// Register registers the lifecycle routes with the chi router. The account
// routes sit outside the lifecycle gate on purpose: a user whose sessions
// were cleared at request time must still be able to cancel after logging
// back in, and a deactivated user must be able to file for reactivation.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.Recovery(h.logger))
	ar.Use(middleware.RequestID)
	ar.Use(middleware.RequestTime)
	ar.Use(middleware.Logger(h.logger))
	ar.Use(middleware.Timeout(30 * time.Second))
	ar.Use(middleware.ContentTypeJSON)
	ar.Use(middleware.Latency(h.metrics))
	ar.Use(middleware.RequireAuth(h.jwtValidator, h.sessions, h.logger))
	ar.Get("/", h.handleGetAccount)
	ar.Post("/deactivate", h.handleRequestDeactivation)
	ar.Post("/deactivate/cancel", h.handleCancelDeactivation)
	ar.Post("/reactivation", h.handleRequestReactivation)

	adm := chi.NewRouter()
	adm.Use(middleware.Recovery(h.logger))
	adm.Use(middleware.RequestID)
	adm.Use(middleware.RequestTime)
	adm.Use(middleware.Logger(h.logger))
	adm.Use(middleware.Timeout(30 * time.Second))
	adm.Use(middleware.ContentTypeJSON)
	adm.Use(middleware.Latency(h.metrics))
	adm.Use(middleware.RequireAuth(h.jwtValidator, h.sessions, h.logger))
	adm.Use(middleware.RequireAdminToken(h.adminTokenHash, h.logger))
	adm.Get("/", h.handleListReactivations)
	adm.Post("/{requestID}/review", h.handleReviewReactivation)

	r.Mount("/account", ar)
	r.Mount("/admin/reactivations", adm)
}

type accountResponse struct {
	ID                      string     `json:"id"`
	Email                   string     `json:"email"`
	DeactivationRequestedAt *time.Time `json:"deactivation_requested_at,omitempty"`
	DeactivationScheduledAt *time.Time `json:"deactivation_scheduled_at,omitempty"`
	IsDeactivated           bool       `json:"is_deactivated"`
}

func toAccountResponse(a *lifecycle.Account) accountResponse {
	return accountResponse{
		ID:                      a.ID.String(),
		Email:                   a.Email,
		DeactivationRequestedAt: a.DeactivationRequestedAt,
		DeactivationScheduledAt: a.DeactivationScheduledAt,
		IsDeactivated:           a.IsDeactivated,
	}
}

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		h.logger.ErrorContext(r.Context(), "user ID missing from context despite auth middleware")
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	account, err := h.lifecycle.GetAccount(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleRequestDeactivation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	account, err := h.lifecycle.RequestDeactivation(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toAccountResponse(account))
}

func (h *Handler) handleCancelDeactivation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	account, err := h.lifecycle.CancelDeactivation(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

type reactivationRequestBody struct {
	Reason string `json:"reason"`
}

type reactivationResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleRequestReactivation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	var body reactivationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req, err := h.lifecycle.RequestReactivation(r.Context(), userID, body.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reactivationResponse{
		ID:        req.ID.String(),
		Status:    string(req.Status),
		Reason:    req.Reason,
		CreatedAt: req.CreatedAt,
	})
}

type pendingReactivationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleListReactivations(w http.ResponseWriter, r *http.Request) {
	queue, err := h.lifecycle.ListPendingReactivations(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list reactivation requests",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list reactivation requests"))
		return
	}
	out := make([]pendingReactivationResponse, 0, len(queue))
	for _, item := range queue {
		out = append(out, pendingReactivationResponse{
			ID:        item.Request.ID.String(),
			UserID:    item.Request.UserID.String(),
			Email:     item.Email,
			Reason:    item.Request.Reason,
			CreatedAt: item.Request.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pending": out})
}

type reviewRequestBody struct {
	Decision   string `json:"decision"`
	AdminNotes string `json:"admin_notes"`
}

func (h *Handler) handleReviewReactivation(w http.ResponseWriter, r *http.Request) {
	reqID, err := id.ParseReactivationID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body reviewRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	decision, err := lifecycle.ParseReviewDecision(body.Decision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.lifecycle.ReviewReactivation(r.Context(), reqID, decision, body.AdminNotes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reactivationResponse{
		ID:        req.ID.String(),
		Status:    string(req.Status),
		Reason:    req.Reason,
		CreatedAt: req.CreatedAt,
	})
}

// Package handler exposes the admin ledger surface: granting credits and
// inspecting a user's transaction history.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"applygate/internal/ledger"
	"applygate/internal/platform/metrics"
	"applygate/internal/platform/middleware"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/httputil"
)

// Service defines the ledger operations the handler needs.
type Service interface {
	Balance(ctx context.Context, userID id.UserID) (int64, error)
	Credit(ctx context.Context, userID id.UserID, amount int64, txType ledger.TransactionType, description string) (*ledger.Transaction, error)
	History(ctx context.Context, userID id.UserID) ([]*ledger.Transaction, error)
}

// Handler handles admin ledger endpoints.
type Handler struct {
	logger         *slog.Logger
	ledger         Service
	metrics        *metrics.Metrics
	jwtValidator   middleware.JWTValidator
	sessions       middleware.SessionChecker
	adminTokenHash string
}

func New(
	ledgerSvc Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	sessions middleware.SessionChecker,
	adminTokenHash string,
) *Handler {
	return &Handler{
		logger:         logger,
		ledger:         ledgerSvc,
		metrics:        m,
		jwtValidator:   jwtValidator,
		sessions:       sessions,
		adminTokenHash: adminTokenHash,
	}
}

// Register registers the admin ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	lr := chi.NewRouter()
	lr.Use(middleware.Recovery(h.logger))
	lr.Use(middleware.RequestID)
	lr.Use(middleware.RequestTime)
	lr.Use(middleware.Logger(h.logger))
	lr.Use(middleware.Timeout(30 * time.Second))
	lr.Use(middleware.ContentTypeJSON)
	lr.Use(middleware.Latency(h.metrics))
	lr.Use(middleware.RequireAuth(h.jwtValidator, h.sessions, h.logger))
	lr.Use(middleware.RequireAdminToken(h.adminTokenHash, h.logger))
	lr.Post("/credit", h.handleCredit)
	lr.Get("/{userID}/history", h.handleHistory)

	r.Mount("/admin/ledger", lr)
}

type creditRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	txn, err := h.ledger.Credit(r.Context(), userID, req.Amount, ledger.TransactionType(req.Type), req.Description)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "credits granted",
		"user_id", userID.String(),
		"amount", req.Amount,
		"type", req.Type,
	)
	httputil.WriteJSON(w, http.StatusCreated, transactionResponse{
		ID:          txn.ID.String(),
		Amount:      txn.Amount,
		Type:        string(txn.Type),
		Description: txn.Description,
		CreatedAt:   txn.CreatedAt,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	history, err := h.ledger.History(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(history))
	for _, txn := range history {
		out = append(out, transactionResponse{
			ID:          txn.ID.String(),
			Amount:      txn.Amount,
			Type:        string(txn.Type),
			Description: txn.Description,
			CreatedAt:   txn.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"balance":      balance,
		"transactions": out,
	})
}

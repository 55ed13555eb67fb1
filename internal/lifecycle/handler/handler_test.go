package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applygate/internal/lifecycle"
	"applygate/internal/lifecycle/service"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/requestcontext"
)

type stubService struct {
	account     *lifecycle.Account
	accountErr  error
	reactivate  *lifecycle.ReactivationRequest
	reactivErr  error
	reviewed    *lifecycle.ReactivationRequest
	reviewErr   error
	pending     []*service.PendingReactivation
	gotDecision lifecycle.ReviewDecision
}

func (s *stubService) GetAccount(context.Context, id.UserID) (*lifecycle.Account, error) {
	return s.account, s.accountErr
}

func (s *stubService) RequestDeactivation(context.Context, id.UserID) (*lifecycle.Account, error) {
	return s.account, s.accountErr
}

func (s *stubService) CancelDeactivation(context.Context, id.UserID) (*lifecycle.Account, error) {
	return s.account, s.accountErr
}

func (s *stubService) RequestReactivation(context.Context, id.UserID, string) (*lifecycle.ReactivationRequest, error) {
	return s.reactivate, s.reactivErr
}

func (s *stubService) ListPendingReactivations(context.Context) ([]*service.PendingReactivation, error) {
	return s.pending, nil
}

func (s *stubService) ReviewReactivation(_ context.Context, _ id.ReactivationID, decision lifecycle.ReviewDecision, _ string) (*lifecycle.ReactivationRequest, error) {
	s.gotDecision = decision
	return s.reviewed, s.reviewErr
}

func newHandler(svc Service) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(svc, logger, nil, nil, nil, "")
}

func authed(r *http.Request, userID id.UserID) *http.Request {
	return r.WithContext(requestcontext.WithUserID(r.Context(), userID))
}

func TestHandleRequestDeactivation(t *testing.T) {
	userID := id.NewUserID()
	requested := time.Now()
	scheduled := requested.Add(5 * 24 * time.Hour)

	t.Run("accepted", func(t *testing.T) {
		h := newHandler(&stubService{account: &lifecycle.Account{
			ID:                      userID,
			Email:                   "u@example.com",
			DeactivationRequestedAt: &requested,
			DeactivationScheduledAt: &scheduled,
		}})

		req := authed(httptest.NewRequest(http.MethodPost, "/account/deactivate", nil), userID)
		w := httptest.NewRecorder()
		h.handleRequestDeactivation(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		var resp accountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, userID.String(), resp.ID)
		require.NotNil(t, resp.DeactivationScheduledAt)
	})

	t.Run("already requested maps to conflict", func(t *testing.T) {
		h := newHandler(&stubService{
			accountErr: dErrors.Wrap(lifecycle.ErrAlreadyRequested, dErrors.CodeConflict, "deactivation already requested"),
		})
		req := authed(httptest.NewRequest(http.MethodPost, "/account/deactivate", nil), userID)
		w := httptest.NewRecorder()
		h.handleRequestDeactivation(w, req)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing identity", func(t *testing.T) {
		h := newHandler(&stubService{})
		w := httptest.NewRecorder()
		h.handleRequestDeactivation(w, httptest.NewRequest(http.MethodPost, "/account/deactivate", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleRequestReactivation(t *testing.T) {
	userID := id.NewUserID()
	h := newHandler(&stubService{reactivate: &lifecycle.ReactivationRequest{
		ID:        id.NewReactivationID(),
		UserID:    userID,
		Status:    lifecycle.ReactivationPending,
		Reason:    "mistake",
		CreatedAt: time.Now(),
	}})

	body, _ := json.Marshal(reactivationRequestBody{Reason: "mistake"})
	req := authed(httptest.NewRequest(http.MethodPost, "/account/reactivation", bytes.NewReader(body)), userID)
	w := httptest.NewRecorder()
	h.handleRequestReactivation(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp reactivationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
}

func TestHandleReviewReactivation(t *testing.T) {
	admin := id.NewUserID()
	reqID := id.NewReactivationID()

	t.Run("approve", func(t *testing.T) {
		stub := &stubService{reviewed: &lifecycle.ReactivationRequest{
			ID:        reqID,
			Status:    lifecycle.ReactivationApproved,
			CreatedAt: time.Now(),
		}}
		h := newHandler(stub)

		body, _ := json.Marshal(reviewRequestBody{Decision: "approve", AdminNotes: "ok"})
		req := authed(httptest.NewRequest(http.MethodPost, "/admin/reactivations/"+reqID.String()+"/review", bytes.NewReader(body)), admin)
		req = withURLParam(req, "requestID", reqID.String())
		w := httptest.NewRecorder()
		h.handleReviewReactivation(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, lifecycle.DecisionApprove, stub.gotDecision)
	})

	t.Run("invalid decision", func(t *testing.T) {
		h := newHandler(&stubService{})
		body, _ := json.Marshal(reviewRequestBody{Decision: "maybe"})
		req := authed(httptest.NewRequest(http.MethodPost, "/admin/reactivations/"+reqID.String()+"/review", bytes.NewReader(body)), admin)
		req = withURLParam(req, "requestID", reqID.String())
		w := httptest.NewRecorder()
		h.handleReviewReactivation(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

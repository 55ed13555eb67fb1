package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"applygate/internal/paywall"
	"applygate/internal/paywall/handler/mocks"
	"applygate/internal/paywall/service"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/paywall-mocks.go -package=mocks Service

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService, *mocks.MockBalanceService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockSvc := mocks.NewMockService(ctrl)
	mockLedger := mocks.NewMockBalanceService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(mockSvc, mockLedger, logger, nil, nil, nil, nil, 5)
	return h, mockSvc, mockLedger
}

func discloseReq(t *testing.T, viewer id.UserID, body discloseRequest) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/paywall/disclose", body)
	return testutil.WithUserID(req, viewer.String())
}

func TestHandleDisclose(t *testing.T) {
	viewer := id.NewUserID()
	app := id.NewApplicationID()

	t.Run("first disclosure returns charged", func(t *testing.T) {
		h, mockSvc, _ := newTestHandler(t)
		mockSvc.EXPECT().
			RequestDisclosure(gomock.Any(), viewer, app, paywall.FieldEmail, int64(5)).
			Return(&service.Result{Charged: true}, nil)

		req := discloseReq(t, viewer, discloseRequest{ApplicationID: app.String(), FieldKey: "email"})
		w := httptest.NewRecorder()
		h.handleDisclose(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp discloseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Charged)
		assert.Equal(t, int64(5), resp.Cost)
	})

	t.Run("replay returns uncharged", func(t *testing.T) {
		h, mockSvc, _ := newTestHandler(t)
		mockSvc.EXPECT().
			RequestDisclosure(gomock.Any(), viewer, app, paywall.FieldEmail, int64(5)).
			Return(&service.Result{Charged: false}, nil)

		req := discloseReq(t, viewer, discloseRequest{ApplicationID: app.String(), FieldKey: "email"})
		w := httptest.NewRecorder()
		h.handleDisclose(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp discloseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Charged)
		assert.Zero(t, resp.Cost)
	})

	t.Run("insufficient balance maps to 402", func(t *testing.T) {
		h, mockSvc, _ := newTestHandler(t)
		mockSvc.EXPECT().
			RequestDisclosure(gomock.Any(), viewer, app, paywall.FieldFinancial, int64(5)).
			Return(nil, dErrors.New(dErrors.CodeInsufficientBalance, "balance cannot cover disclosure"))

		req := discloseReq(t, viewer, discloseRequest{ApplicationID: app.String(), FieldKey: "financial"})
		w := httptest.NewRecorder()
		h.handleDisclose(w, req)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})

	t.Run("unknown field key rejected before service call", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		req := discloseReq(t, viewer, discloseRequest{ApplicationID: app.String(), FieldKey: "ssn"})
		w := httptest.NewRecorder()
		h.handleDisclose(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed application ID rejected", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		req := discloseReq(t, viewer, discloseRequest{ApplicationID: "not-a-uuid", FieldKey: "email"})
		w := httptest.NewRecorder()
		h.handleDisclose(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing identity is an internal error", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/paywall/disclose", discloseRequest{ApplicationID: app.String(), FieldKey: "email"})
		w := httptest.NewRecorder()
		h.handleDisclose(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleBalance(t *testing.T) {
	viewer := id.NewUserID()

	h, _, mockLedger := newTestHandler(t)
	mockLedger.EXPECT().Balance(gomock.Any(), viewer).Return(int64(42), nil)

	req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/paywall/balance"), viewer.String())
	w := httptest.NewRecorder()
	h.handleBalance(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Balance)
}

func TestHandleDisclosed(t *testing.T) {
	viewer := id.NewUserID()
	app := id.NewApplicationID()

	h, mockSvc, _ := newTestHandler(t)
	mockSvc.EXPECT().Disclosed(gomock.Any(), viewer, app).Return([]*paywall.Grant{
		{ViewerID: viewer, ApplicationID: app, FieldKey: paywall.FieldEmail, Cost: 5},
	}, nil)

	req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/paywall/disclosed?application_id="+app.String()), viewer.String())
	w := httptest.NewRecorder()
	h.handleDisclosed(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Disclosed []disclosedGrant `json:"disclosed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Disclosed, 1)
	assert.Equal(t, "email", resp.Disclosed[0].FieldKey)
}

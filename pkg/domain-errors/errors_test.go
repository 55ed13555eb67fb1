package domainerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_WalksWrappedChain(t *testing.T) {
	cause := errors.New("row not found")
	inner := Wrap(cause, CodeNotFound, "account missing")
	outer := Wrap(inner, CodeInternal, "deactivation failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(outer, CodeConflict))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("unique violation")
	err := Wrap(cause, CodeConflict, "grant already exists")

	require.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "grant already exists")
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, ToHTTPStatus(CodeInsufficientBalance))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("unknown")))
}

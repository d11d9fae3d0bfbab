package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := InvalidInput("quantity must be positive")
	assert.Equal(t, "INVALID_INPUT: quantity must be positive", err.Error())

	wrapped := &AppError{Code: "X", Message: "m", Err: errors.New("root")}
	assert.Equal(t, "X: m: root", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	err := NotFound("cart", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	err2 := Conflict("provider mismatch")
	assert.ErrorIs(t, err2, ErrConflict)
}

func TestAppError_WithCode(t *testing.T) {
	base := Unauthorized("sign in to add items to the cart")
	coded := base.WithCode("LOGIN_REQUIRED")

	assert.Equal(t, "LOGIN_REQUIRED", coded.Code)
	assert.Equal(t, http.StatusUnauthorized, coded.Status)
	assert.ErrorIs(t, coded, ErrUnauthorized)
	// Original is untouched.
	assert.Equal(t, "UNAUTHORIZED", base.Code)
}

func TestUnprocessable(t *testing.T) {
	err := Unprocessable("PARTS_NOT_CONFIGURED", "set has no parts configured")
	assert.Equal(t, "PARTS_NOT_CONFIGURED", err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.ErrorIs(t, err, ErrUnprocessable)
}

func TestBadGateway(t *testing.T) {
	err := BadGateway("STOCK_VALIDATION_FAILED", "failed to validate stock availability")
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.ErrorIs(t, err, ErrBadGateway)
}

func TestHTTPStatus_AppError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("cart", "u")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("bad")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("busy")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ServiceUnavailable("down")))
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("load cart: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))

	err = fmt.Errorf("call inventory: %w", ErrBadGateway)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
}

func TestHTTPStatus_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrConflict, "save cart")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "save cart: conflict", err.Error())
}

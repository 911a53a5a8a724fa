package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	err := NewAppError(http.StatusBadRequest, CodeInvalidInput, "bad", ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeInvalidInput, err.Code)
	assert.Equal(t, "bad", err.Message)
	assert.Equal(t, ErrInvalidInput.Error(), err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)

	notFound := NotFound("missing")
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, CodeNotFound, notFound.Code)

	badReq := BadRequest("bad request")
	assert.Equal(t, http.StatusBadRequest, badReq.Status)
	assert.Equal(t, CodeInvalidInput, badReq.Code)

	unauth := Unauthorized("unauthorized")
	assert.Equal(t, http.StatusUnauthorized, unauth.Status)
	assert.Equal(t, CodeUnauthorized, unauth.Code)

	internal := InternalError(stderrors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, "db down", internal.Error())

	noCause := NewAppError(http.StatusTeapot, "X", "message only", nil)
	assert.Equal(t, "message only", noCause.Error())
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrBiometricDuplicate, CodeBiometricDuplicate},
		{ErrBiometricProcessing, CodeBiometricProcessing},
		{ErrEmailInUse, CodeEmailInUse},
		{ErrAlreadyExists, CodeEmailInUse},
		{ErrAccountBanned, CodeAccountBanned},
		{ErrPaymentDeclined, CodePaymentDeclined},
		{ErrNotFound, CodeNotFound},
		{ErrInvalidInput, CodeInvalidInput},
		{ErrUnauthorized, CodeUnauthorized},
		{stderrors.New("anything else"), CodeInternal},
		// Wrapped causes still map.
		{fmt.Errorf("subscription: %w", ErrPaymentDeclined), CodePaymentDeclined},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CodeFor(tc.err), "err=%v", tc.err)
	}
}

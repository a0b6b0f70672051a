package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetail_DoesNotMutateSentinel(t *testing.T) {
	err := ErrValidation.WithDetail("message", "phone too short")

	assert.Empty(t, ErrValidation.Details)
	assert.Equal(t, "phone too short", err.Details["message"])
	assert.Equal(t, "VALIDATION_ERROR: phone too short", err.Error())

	other := err.WithDetail("field", "phone")
	assert.Len(t, err.Details, 1)
	assert.Len(t, other.Details, 2)
}

func TestWrap_PreservesCodeAndCause(t *testing.T) {
	cause := stderrors.New("recipients: min")
	err := Wrap(cause, ErrValidation)

	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(err))
	assert.True(t, err.IsFatal())
	assert.Nil(t, Wrap(nil, ErrValidation))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrRateLimited.WithDetail("class", "default"))
	assert.Equal(t, "RATE_LIMITED", resp.ErrorCode)
	assert.Equal(t, map[string]interface{}{"class": "default"}, resp.Details)

	resp = ToErrorResponse(stderrors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp.ErrorCode)
	assert.Nil(t, resp.Details)
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(stderrors.New("boom")))
}

func TestRetryability(t *testing.T) {
	assert.True(t, ErrServiceUnavailable.IsRetryable())
	assert.False(t, ErrNotFound.IsRetryable())
	assert.False(t, ErrInternal.AsFatal().IsRetryable())
	assert.True(t, ErrValidation.AsRetryable().IsRetryable())
	assert.True(t, ErrRateLimited.IsRetryable())
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("index out of range")
	require.Error(t, err)

	var appErr *Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
	assert.True(t, appErr.IsFatal())
	assert.Contains(t, err.Error(), "index out of range")

	cause := stderrors.New("nil map write")
	assert.ErrorIs(t, RecoverPanic(cause), cause)
}

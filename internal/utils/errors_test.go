package contextutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with details",
			appError: &AppError{
				Code:     ErrorCodeInvalidInput,
				Severity: SeverityError,
				Message:  "Invalid input",
				Details:  "unknown severity \"urgent\"",
			},
			expected: "INVALID_INPUT: Invalid input - unknown severity \"urgent\"",
		},
		{
			name: "error without details",
			appError: &AppError{
				Code:     ErrorCodeRecordNotFound,
				Severity: SeverityInfo,
				Message:  "Record not found",
			},
			expected: "RECORD_NOT_FOUND: Record not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("disk full")
	appErr := &AppError{Code: ErrorCodeDatabaseQuery, Cause: cause}
	assert.Equal(t, cause, appErr.Unwrap())

	assert.True(t, errors.Is(&AppError{Code: ErrorCodeInvalidTransition}, ErrInvalidTransition))
	assert.False(t, errors.Is(&AppError{Code: ErrorCodeConflict}, ErrInvalidTransition))
	assert.False(t, appErr.Is(cause))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	wrapped := WrapError(ErrRecordNotFound, "bug 42")
	assert.True(t, IsError(wrapped, ErrRecordNotFound))
	assert.Equal(t, "bug 42", wrapped.(*AppError).Message)

	plain := WrapError(errors.New("boom"), "list bugs")
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(plain))
}

func TestWrapErrorf(t *testing.T) {
	base := errors.New("connection reset")

	err := WrapErrorf(base, "failed to load bug %d: %w", 7, base)
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(err))

	err = WrapErrorf(ErrInvalidTransition, "bug %d", 7)
	assert.True(t, IsError(err, ErrInvalidTransition))
	assert.Equal(t, "bug 7", err.(*AppError).Message)
}

func TestWrapWithCode(t *testing.T) {
	assert.Nil(t, WrapWithCode(nil, ErrorCodeDatabaseQuery, "x"))

	err := WrapWithCode(errors.New("no such table"), ErrorCodeDatabaseQuery, "query bugs")
	assert.Equal(t, ErrorCodeDatabaseQuery, GetErrorCode(err))
	assert.Equal(t, SeverityError, GetErrorSeverity(err))

	err = WrapWithCode(errors.New("dial tcp"), ErrorCodeDatabaseConnection, "open store")
	assert.Equal(t, SeverityFatal, GetErrorSeverity(err))

	err = WrapWithCode(ErrRecordNotFound, ErrorCodeDatabaseQuery, "bug 1")
	assert.True(t, IsError(err, ErrRecordNotFound))
}

func TestDetailf(t *testing.T) {
	err := Detailf(ErrInvalidTransition, "%s -> %s", "New", "Resolved")
	assert.True(t, IsError(err, ErrInvalidTransition))
	assert.Equal(t, "New -> Resolved", err.Details)
	assert.Empty(t, ErrInvalidTransition.Details)
}

func TestAsErrorAndDefaults(t *testing.T) {
	var target *AppError
	require.True(t, AsError(ErrConflict, &target))
	assert.Equal(t, ErrorCodeConflict, target.Code)
	assert.False(t, AsError(errors.New("plain"), &target))

	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(errors.New("plain")))
	assert.Equal(t, SeverityError, GetErrorSeverity(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(&AppError{Code: ErrorCodeServiceUnavailable, Severity: SeverityFatal}))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestAppError_ToJSON(t *testing.T) {
	err := NewAppErrorWithCause(ErrorCodeDatabaseQuery, SeverityError, "query failed", "bug_reports", errors.New("locked"))
	out := err.ToJSON()

	assert.Equal(t, "DATABASE_QUERY_ERROR", out["code"])
	assert.Equal(t, "query failed: bug_reports", out["error"])
	assert.Equal(t, "bug_reports", out["details"])
	assert.Equal(t, "locked", out["cause"])
	assert.Equal(t, false, out["retryable"])

	out = NewAppError(ErrorCodeInvalidInput, SeverityWarn, "bad", "").ToJSON()
	assert.Equal(t, "bad", out["error"])
	_, hasCause := out["cause"]
	assert.False(t, hasCause)
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, UnknownActor, GetActorFromContext(ctx))
	assert.Equal(t, UnknownActor, GetSessionFromContext(ctx))

	ctx = WithActor(ctx, "  alice ")
	ctx = WithSession(ctx, "sess-1")
	assert.Equal(t, "alice", GetActorFromContext(ctx))
	assert.Equal(t, "sess-1", GetSessionFromContext(ctx))

	assert.Equal(t, UnknownActor, GetActorFromContext(WithActor(context.Background(), "   ")))
}

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeIndexUnavailable, CategoryTransport},
		{ErrCodeIndexRejected, CategoryTransport},
		{ErrCodeInvalidStoragePath, CategoryValidation},
		{ErrCodeLookupFailed, CategoryInternal},
		{"short", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_RetryableOnlyForUnavailable(t *testing.T) {
	assert.True(t, TransportError("down", nil).Retryable)
	assert.False(t, RejectedError("bad query").Retryable)
	assert.False(t, MalformedError("no value", nil).Retryable)
	assert.Equal(t, SeverityWarning, TransportError("down", nil).Severity)
	assert.Equal(t, SeverityFatal, ConfigError("bad", nil).Severity)
}

func TestSnipError_UnwrapAndIs(t *testing.T) {
	// Given: a transport error wrapping a cause, wrapped again with fmt
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("query metadata index: %w", TransportError("index unreachable", cause))

	// Then: both the cause and the code template match
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, New(ErrCodeIndexUnavailable, "", nil))
	assert.NotErrorIs(t, err, New(ErrCodeIndexRejected, "", nil))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrCodeIndexUnavailable, GetCode(err))
	assert.Equal(t, CategoryTransport, GetCategory(err))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestHelpers_PlainErrors(t *testing.T) {
	plain := stderrors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(plain))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := RejectedError("Invalid expression").
		WithDetail("index", "snippets").
		WithSuggestion("check the search term syntax")

	require.NotNil(t, err.Details)
	assert.Equal(t, "snippets", err.Details["index"])
	assert.Equal(t, "[ERR_302_INDEX_REJECTED] Invalid expression", err.Error())

	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: Invalid expression")
	assert.Contains(t, out, "Suggestion: check the search term syntax")
	assert.Contains(t, out, "[ERR_302_INDEX_REJECTED]")
}

func TestFormatForCLI_PlainAndNil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
	assert.Equal(t, "Error: boom\n", FormatForCLI(stderrors.New("boom")))
}

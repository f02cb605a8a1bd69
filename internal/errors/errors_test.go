package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeIndexCorrupt, CategoryIndex, SeverityFatal, false},
		{ErrCodeCollaboratorUnavailable, CategoryCollaborator, SeverityWarning, true},
		{ErrCodeQueueUnavailable, CategoryCollaborator, SeverityWarning, true},
		{ErrCodeUnsupportedType, CategoryValidation, SeverityError, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := New(tt.code, "boom")
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.retryable, e.Retryable)
		})
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
}

func TestErrorStringCarriesCodeAndCause(t *testing.T) {
	cause := stderrors.New("disk full")
	e := Wrap(cause, ErrCodeIndexWrite, "upsert document 7")
	assert.Contains(t, e.Error(), ErrCodeIndexWrite)
	assert.Contains(t, e.Error(), "disk full")
	assert.ErrorIs(t, e, cause)
}

func TestIsMatchesByCode(t *testing.T) {
	e := New(ErrCodeIndexLocked, "locked")
	assert.ErrorIs(t, e, New(ErrCodeIndexLocked, "different message"))
	assert.NotErrorIs(t, e, New(ErrCodeIndexCorrupt, "locked"))
}

func TestHelpersOnWrappedChains(t *testing.T) {
	inner := CollaboratorUnavailable("embedding", stderrors.New("refused"))
	outer := fmt.Errorf("during retrieval: %w", inner)

	assert.True(t, IsRetryable(outer))
	assert.False(t, IsFatal(outer))
	assert.Equal(t, ErrCodeCollaboratorUnavailable, GetCode(outer))

	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.Empty(t, GetCode(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	e := New(ErrCodeInvalidInput, "too big").
		WithDetail("size", int64(99)).
		WithDetail("limit", int64(10))
	require.NotNil(t, e.Details)
	assert.Equal(t, int64(99), e.Details["size"])
	assert.Equal(t, int64(10), e.Details["limit"])
}

func TestUnsupportedTypeDetails(t *testing.T) {
	e := UnsupportedType("movie.mp4", ".mp4")
	assert.Equal(t, ErrCodeUnsupportedType, e.Code)
	assert.Equal(t, ".mp4", e.Details["extension"])
}

func TestIndexCorruptIsFatal(t *testing.T) {
	e := Wrap(stderrors.New("bad meta"), ErrCodeIndexCorrupt, "integrity check")
	assert.True(t, IsFatal(e))
	assert.False(t, IsRetryable(e))
}

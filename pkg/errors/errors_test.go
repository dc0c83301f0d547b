package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", ErrUpstream)
	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.EqualError(t, appErr, "internal server error: boom")
	assert.Nil(t, FromError(nil))
}

func TestCloneOverridesMessage(t *testing.T) {
	clone := Clone(ErrValidation, "batch_id is required")
	assert.Equal(t, "batch_id is required", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	clone := Clone(ErrNotReady, "batch b1 still loading")
	wrapped := fmt.Errorf("export: %w", Wrap(fmt.Errorf("deadline"), ErrNotReady.Code, ErrNotReady.Status, "timed out"))

	assert.True(t, errors.Is(clone, ErrNotReady))
	assert.True(t, errors.Is(wrapped, ErrNotReady))
	assert.False(t, errors.Is(clone, ErrUpstream))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(fmt.Errorf("job: %w", ErrValidation)))
	assert.True(t, IsClientError(ErrNotFound))
	assert.False(t, IsClientError(ErrUpstream))
	assert.False(t, IsClientError(ErrNotReady))
	assert.False(t, IsClientError(fmt.Errorf("plain")))
}

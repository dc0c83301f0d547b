package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestErrorHidesServerCause(t *testing.T) {
	c, rec := newContext()
	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.String(), "connection refused")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestErrorClientFailureNotRecorded(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.Clone(appErrors.ErrValidation, "batch_id is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, c.Errors)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "batch_id is required", env.Error.Message)
}

func TestAcceptedWrapsData(t *testing.T) {
	c, rec := newContext()
	Accepted(c, gin.H{"id": "job-1"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"job-1"}}`, rec.Body.String())
}

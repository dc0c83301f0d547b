package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var fromGin, fromCtx string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, fromGin, fromCtx
}

func TestMiddlewareGeneratesID(t *testing.T) {
	rec, fromGin, fromCtx := serve(t, "")

	_, err := uuid.Parse(fromGin)
	require.NoError(t, err)
	assert.Equal(t, fromGin, fromCtx)
	assert.Equal(t, fromGin, rec.Header().Get(headerKey))
}

func TestMiddlewareReusesInboundID(t *testing.T) {
	rec, fromGin, _ := serve(t, "upload-job-42")

	assert.Equal(t, "upload-job-42", fromGin)
	assert.Equal(t, "upload-job-42", rec.Header().Get(headerKey))
}

func TestMiddlewareReplacesMalformedID(t *testing.T) {
	_, withSpace, _ := serve(t, "has space")
	_, tooLong, _ := serve(t, strings.Repeat("a", maxLength+1))

	assert.NotEqual(t, "has space", withSpace)
	assert.Len(t, tooLong, 36)
}

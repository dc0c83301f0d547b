package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-performance-api/internal/middleware"
	"github.com/noah-isme/sma-performance-api/internal/models"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := middleware.ClaimsFromContext(c)
	return claims
}

// requireBatchAccess rejects callers whose claims do not cover batchID. Students pass here and
// are scoped to their own records by the caller.
func requireBatchAccess(c *gin.Context, batchID string) (*models.JWTClaims, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		return claims, nil
	}
	if !claims.CanAccessBatch(batchID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "batch not assigned to caller")
	}
	return claims, nil
}

// responseMeta merges cache and timing information into the request's response meta.
func responseMeta(c *gin.Context, start time.Time, cacheHit bool) map[string]interface{} {
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	return meta
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/expoferia/expoferia-api/internal/middleware"
	"github.com/expoferia/expoferia-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, or nil when
// the JWT middleware did not run on this route.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

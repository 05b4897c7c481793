package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/middleware"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil
	}
	return claims
}

func identityFromContext(c *gin.Context) (models.Identity, bool) {
	return middleware.IdentityFromContext(c)
}

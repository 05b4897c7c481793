package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/response"
)

// RequireRoles enforces the caller's role inside the current school. It must run after
// Tenant.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[identity.Role]; !ok {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "your role cannot perform this action"))
			return
		}
		c.Next()
	}
}

// RequireAdmin allows school administrators only.
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
}

package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/response"
)

// Tenant headers.
const (
	HeaderSchoolID       = "x-school-id"
	HeaderAcademicYearID = "x-academic-year-id"
)

// Context keys set by the tenant middlewares.
const (
	ContextIdentityKey     = "identity"
	ContextAcademicYearKey = "academicYearId"
)

type membershipResolver interface {
	Resolve(ctx context.Context, userID, schoolID string) (models.Identity, error)
}

type academicYearResolver interface {
	ResolveAcademicYear(ctx context.Context, schoolID, requested string) (string, error)
}

// Tenant resolves the caller's membership in the school named by x-school-id and stores
// the resulting Identity on the context. It must run after JWT.
func Tenant(resolver membershipResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		schoolID := strings.TrimSpace(c.GetHeader(HeaderSchoolID))
		if schoolID == "" {
			response.Abort(c, appErrors.Clone(appErrors.ErrValidation, HeaderSchoolID+" header is required"))
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), claims.UserID, schoolID)
		if err != nil {
			response.Abort(c, err)
			return
		}
		identity.IPAddress = c.ClientIP()
		identity.UserAgent = c.GetHeader("User-Agent")

		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// AcademicYear picks the year from the academicYearId query parameter, then the
// x-academic-year-id header, then the school's current year. It must run after Tenant.
func AcademicYear(resolver academicYearResolver) gin.HandlerFunc {
	return academicYear(resolver, true)
}

// DefaultAcademicYear resolves the year like AcademicYear but lets the request through
// without one when nothing was requested and the school has no current year.
func DefaultAcademicYear(resolver academicYearResolver) gin.HandlerFunc {
	return academicYear(resolver, false)
}

func academicYear(resolver academicYearResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		requested := strings.TrimSpace(c.Query(ContextAcademicYearKey))
		if requested == "" {
			requested = strings.TrimSpace(c.GetHeader(HeaderAcademicYearID))
		}
		yearID, err := resolver.ResolveAcademicYear(c.Request.Context(), identity.SchoolID, requested)
		if err != nil {
			if !required && requested == "" && errors.Is(err, appErrors.ErrNotFound) {
				c.Next()
				return
			}
			response.Abort(c, err)
			return
		}
		c.Set(ContextAcademicYearKey, yearID)
		c.Next()
	}
}

// IdentityFromContext returns the Identity stored by Tenant.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

// AcademicYearFromContext returns the year stored by AcademicYear.
func AcademicYearFromContext(c *gin.Context) string {
	return c.GetString(ContextAcademicYearKey)
}

package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/handler"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/middleware"
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	APIPrefix    string
	EnableDocs   bool
	Auth         *handler.AuthHandler
	Timetable    *handler.TimetableHandler
	Metrics      *handler.MetricsHandler
	Authenticate gin.HandlerFunc
	Tenant       gin.HandlerFunc
	// AcademicYear must resolve a year; DefaultAcademicYear may leave it empty.
	AcademicYear        gin.HandlerFunc
	DefaultAcademicYear gin.HandlerFunc
}

// Register mounts every route on r.
func Register(r *gin.Engine, deps Dependencies) {
	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Ready)
	r.GET("/metrics", deps.Metrics.Prometheus)
	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", deps.Auth.Login)
	auth.POST("/refresh", deps.Auth.Refresh)
	secured := auth.Group("", deps.Authenticate)
	secured.POST("/logout", deps.Auth.Logout)
	secured.POST("/change-password", deps.Auth.ChangePassword)
	secured.GET("/me", deps.Auth.Me)

	// Entry writes carry their academic year in the body; only listings and weekly
	// views resolve one from the request.
	school := api.Group("", deps.Authenticate, deps.Tenant)
	year := withYear(deps.AcademicYear)
	defaultYear := withYear(deps.DefaultAcademicYear)

	entries := school.Group("/timetable-entries")
	entries.GET("", year(deps.Timetable.List)...)
	entries.GET("/:id", deps.Timetable.Get)
	admin := entries.Group("", middleware.RequireAdmin())
	admin.POST("", deps.Timetable.Create)
	admin.POST("/import", defaultYear(deps.Timetable.Import)...)
	admin.PATCH("/:id", deps.Timetable.Update)
	admin.DELETE("/:id", deps.Timetable.Delete)

	school.GET("/classrooms/:id/timetable", year(deps.Timetable.ClassroomWeek)...)
	school.GET("/classrooms/:id/timetable/export", year(deps.Timetable.ExportClassroomWeek)...)
	school.GET("/teachers/:id/timetable", year(deps.Timetable.TeacherWeek)...)
}

// withYear prefixes a handler with the year resolver when one is configured.
func withYear(resolve gin.HandlerFunc) func(gin.HandlerFunc) []gin.HandlerFunc {
	return func(h gin.HandlerFunc) []gin.HandlerFunc {
		if resolve == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{resolve, h}
	}
}

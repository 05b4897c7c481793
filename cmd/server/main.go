package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/Chaibouu/mon-ecole-beta-sub002/api/swagger"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/handler"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/middleware"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/repository"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/router"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/service"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/cache"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/config"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/database"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/jobs"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/logger"
	corsmiddleware "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/middleware/cors"
	reqidmiddleware "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/middleware/requestid"
)

// @title Mon Ecole Timetable API
// @version 1.0.0
// @description Weekly school timetables with classroom and teacher conflict detection.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.MembershipEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, membership cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	users := repository.NewUserRepository(db)
	schools := repository.NewSchoolRepository(db)
	access := repository.NewAccessRepository(db)
	entries := repository.NewTimetableEntryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.MembershipTTL, logr, redisClient != nil)
	membership := service.NewMembershipService(schools, cacheSvc, cfg.Cache.MembershipTTL, logr)

	auditWorker := service.NewAuditWorker(users, metrics, logr)
	auditQueue := jobs.NewQueue("audit", auditWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	})
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()
	metrics.WatchQueue("audit", auditQueue)
	audit := service.NewAuditService(auditQueue, users, metrics, logr)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	authSvc.OnSessionEnd(membership.Invalidate)
	gate := service.NewAccessGate(access, logr)
	timetables := service.NewTimetableService(entries, schools, gate, db, audit, metrics, validate, logr)
	exports := service.NewExportService(timetables, schools, logr, nil, nil, nil)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cache.NewPinger(redisClient)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	router.Register(r, router.Dependencies{
		APIPrefix:           cfg.APIPrefix,
		EnableDocs:          cfg.Env != config.EnvProduction,
		Auth:                handler.NewAuthHandler(authSvc),
		Timetable:           handler.NewTimetableHandler(timetables, exports, cfg.Timetable.ImportMaxFileSize, cfg.Timetable.ImportMaxRows),
		Metrics:             handler.NewMetricsHandler(metrics, checks),
		Authenticate:        middleware.JWT(authSvc),
		Tenant:              middleware.Tenant(membership),
		AcademicYear:        middleware.AcademicYear(membership),
		DefaultAcademicYear: middleware.DefaultAcademicYear(membership),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/canvas-sync-api/api/swagger"
	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/handler"
	"github.com/noah-isme/canvas-sync-api/internal/middleware"
	"github.com/noah-isme/canvas-sync-api/internal/repository"
	"github.com/noah-isme/canvas-sync-api/internal/service"
	"github.com/noah-isme/canvas-sync-api/internal/transform"
	"github.com/noah-isme/canvas-sync-api/pkg/cache"
	"github.com/noah-isme/canvas-sync-api/pkg/config"
	"github.com/noah-isme/canvas-sync-api/pkg/database"
	"github.com/noah-isme/canvas-sync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/canvas-sync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/canvas-sync-api/pkg/middleware/requestid"
	"github.com/noah-isme/canvas-sync-api/pkg/storage"
)

// @title Canvas Sync API
// @version 0.1.0
// @description Configuration-driven Canvas course data sync service
// @BasePath /
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, relationship caching disabled", "error", err)
		redisClient = nil
	}

	var archive *storage.LocalStorage
	if cfg.Canvas.ArchiveDir != "" {
		archive, err = storage.NewLocalStorage(cfg.Canvas.ArchiveDir)
		if err != nil {
			logr.Sugar().Warnw("archive dir unusable, raw document retention disabled", "error", err)
		}
	}

	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	runRepo := repository.NewSyncRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	registry := transform.NewDefaultRegistry(logr)
	cfgValidator := transform.NewConfigValidator(registry)
	fetcher := canvas.NewFetcher(cfg.Canvas, logr)

	coordinator := service.NewSyncCoordinator(db, courseRepo, studentRepo, assignmentRepo, enrollmentRepo, historyRepo, relationshipRepo, metricsSvc, logr)
	pipeline := service.NewPipelineService(fetcher, registry, cfgValidator, coordinator, runRepo, cacheRepo, archive, validate, cfg.Sync, logr)
	relationshipSvc := service.NewRelationshipService(relationshipRepo, enrollmentRepo, assignmentRepo, cacheRepo, metricsSvc, cfg.Relationships.CacheTTL, logr)
	authSvc := service.NewAuthService(cfg.Auth, cfg.JWT, validate, logr)
	reportSvc := service.NewReportService(pipeline, logr)

	pipeline.Start(ctx)
	defer pipeline.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	syncHandler := handler.NewSyncHandler(pipeline)
	relationshipHandler := handler.NewRelationshipHandler(relationshipSvc)
	reportHandler := handler.NewReportHandler(reportSvc, metricsSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/token", authHandler.Token)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/sync", syncHandler.Run)
	protected.POST("/sync/incremental", syncHandler.RunIncremental)
	protected.POST("/sync/async", syncHandler.Enqueue)
	protected.GET("/sync/runs/:id", syncHandler.GetRun)
	protected.POST("/sync/config/validate", syncHandler.ValidateConfig)

	protected.GET("/students/:id/enrollments", relationshipHandler.StudentEnrollments)
	protected.GET("/students/:id/performance", relationshipHandler.StudentPerformance)
	protected.GET("/courses/:id/enrollments", relationshipHandler.CourseEnrollments)
	protected.GET("/courses/:id/assignments", relationshipHandler.CourseAssignments)
	protected.GET("/integrity", relationshipHandler.ValidateIntegrity)
	protected.POST("/integrity/repair", relationshipHandler.RepairIntegrity)

	if cfg.Reports.Enabled {
		protected.GET("/sync/runs/:id/report", reportHandler.SyncRunReport)
		protected.GET("/metrics/summary", reportHandler.MetricsSummary)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-internship-api/api/swagger"
	"github.com/noah-isme/sma-internship-api/internal/handler"
	"github.com/noah-isme/sma-internship-api/internal/middleware"
	"github.com/noah-isme/sma-internship-api/internal/models"
	"github.com/noah-isme/sma-internship-api/internal/repository"
	"github.com/noah-isme/sma-internship-api/internal/service"
	"github.com/noah-isme/sma-internship-api/pkg/cache"
	"github.com/noah-isme/sma-internship-api/pkg/config"
	"github.com/noah-isme/sma-internship-api/pkg/database"
	"github.com/noah-isme/sma-internship-api/pkg/export"
	"github.com/noah-isme/sma-internship-api/pkg/jobs"
	"github.com/noah-isme/sma-internship-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-internship-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-internship-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-internship-api/pkg/storage"
)

// @title Internship Administration API
// @version 1.0.0
// @description Internship preferences, company review, announcements and notifications.
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	location, err := time.LoadLocation(cfg.Exports.Timezone)
	if err != nil {
		logr.Warn("unknown export timezone, using UTC", zap.String("timezone", cfg.Exports.Timezone), zap.Error(err))
		location = time.UTC
	}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	tokenSvc := service.NewTokenService(userRepo, validate, logr, service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	preferenceSvc := service.NewPreferenceService(preferenceRepo, companyRepo, classRepo, cacheSvc, logr, service.PreferenceConfig{
		RejectDuplicates: cfg.Preferences.RejectDuplicates,
		Location:         location,
		CatalogTTL:       cfg.Cache.TTL,
	})
	companySvc := service.NewCompanyService(companyRepo, service.NewCompanyImporter(), cacheSvc, metrics, validate, logr, cfg.Cache.TTL)
	announcementSvc := service.NewAnnouncementService(announcementRepo, metrics, validate, logr, service.AnnouncementConfig{
		PreviewLength: cfg.Announcements.PreviewLength,
		LinkPrefix:    cfg.Announcements.LinkPrefix,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, validate, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(preferenceSvc, export.DefaultRegistry(cfg.Exports.PDFFontPath), exportStore, signer, metrics, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.ResultTTL,
	}, logr)

	worker := service.NewExportWorker(exportJobRepo, classRepo, exportSvc, logr)
	queue := jobs.NewQueue("preference-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Timeout:    2 * time.Minute,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	exportJobSvc := service.NewExportJobService(exportJobRepo, preferenceSvc, queue, exportSvc, logr)
	if recovered := exportJobSvc.RecoverPendingJobs(ctx); recovered > 0 {
		logr.Info("re-enqueued pending export jobs", zap.Int("count", recovered))
	}
	scheduler, err := exportJobSvc.StartCleanup(cfg.Exports.CleanupSpec)
	if err != nil {
		logr.Fatal("invalid export cleanup schedule", zap.String("spec", cfg.Exports.CleanupSpec), zap.Error(err))
	}
	defer scheduler.Stop()

	authHandler := handler.NewAuthHandler(tokenSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	companyHandler := handler.NewCompanyHandler(companySvc, cfg.Companies.UploadMaxBytes)
	preferenceHandler := handler.NewPreferenceHandler(preferenceSvc, exportSvc)
	exportHandler := handler.NewExportHandler(exportJobSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []models.UserRole{models.RoleTeacher, models.RoleDirector, models.RoleTA, models.RoleAdmin}
	publishers := []models.UserRole{models.RoleDirector, models.RoleTA, models.RoleAdmin}
	reviewers := []models.UserRole{models.RoleDirector, models.RoleAdmin}
	reportViewers := []models.UserRole{models.RoleTeacher, models.RoleDirector, models.RoleAdmin}

	api := r.Group(cfg.APIPrefix)
	if cfg.Env != config.EnvProduction {
		api.POST("/auth/select-role", authHandler.SelectRole)
	}
	api.GET("/exports/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokenSvc))
	secured.GET("/auth/me", authHandler.Me)

	announcements := secured.Group("/announcements")
	announcements.GET("", announcementHandler.ListActive)
	announcements.GET("/manage", middleware.RequireRoles(publishers...), announcementHandler.List)
	announcements.GET("/:id", announcementHandler.Get)
	announcements.POST("", middleware.RequireRoles(publishers...), middleware.Audit(userRepo, logr, models.AuditActionAnnouncementPublish, "announcement"), announcementHandler.Create)
	announcements.PUT("/:id", middleware.RequireRoles(publishers...), middleware.Audit(userRepo, logr, models.AuditActionAnnouncementPublish, "announcement"), announcementHandler.Update)
	announcements.DELETE("/:id", middleware.RequireRoles(publishers...), middleware.Audit(userRepo, logr, models.AuditActionAnnouncementDelete, "announcement"), announcementHandler.Delete)

	notifications := secured.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.POST("/resume-rejections", middleware.RequireRoles(staff...), notificationHandler.CreateResumeRejection)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	companies := secured.Group("/companies")
	companies.POST("", middleware.RequireRoles(staff...), companyHandler.Create)
	companies.POST("/bulk", middleware.RequireRoles(staff...), companyHandler.BulkCreate)
	companies.POST("/import", middleware.RequireRoles(staff...), companyHandler.Import)
	companies.GET("/mine", middleware.RequireRoles(staff...), companyHandler.ListMine)
	companies.GET("/approved", companyHandler.ListApproved)
	companies.GET("/pending", middleware.RequireRoles(reviewers...), companyHandler.ListPending)
	companies.GET("/reviewed", middleware.RequireRoles(reviewers...), companyHandler.ListReviewed)
	companies.GET("/:id", companyHandler.Get)
	companies.GET("/:id/status", companyHandler.Status)
	companies.GET("/:id/download", companyHandler.Download)
	companies.POST("/:id/review", middleware.RequireRoles(reviewers...), middleware.Audit(userRepo, logr, models.AuditActionCompanyReview, "company"), companyHandler.Review)
	companies.DELETE("/:id", middleware.Audit(userRepo, logr, models.AuditActionCompanyDelete, "company"), companyHandler.Delete)

	preferences := secured.Group("/preferences")
	preferences.GET("/me", middleware.RequireRoles(models.RoleStudent), preferenceHandler.Form)
	preferences.PUT("/me", middleware.RequireRoles(models.RoleStudent), preferenceHandler.Submit)
	preferences.GET("/class", middleware.RequireRoles(reportViewers...), preferenceHandler.ClassReport)
	preferences.GET("/class/export", middleware.RequireRoles(reportViewers...), middleware.Audit(userRepo, logr, models.AuditActionPreferenceExport, "preference_report"), preferenceHandler.Export)
	preferences.POST("/exports", middleware.RequireRoles(reportViewers...), middleware.Audit(userRepo, logr, models.AuditActionPreferenceExport, "preference_report"), exportHandler.CreateJob)
	preferences.GET("/exports/:id", middleware.RequireRoles(reportViewers...), exportHandler.Status)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped", zap.Int("pending_exports", queue.Pending()))
}

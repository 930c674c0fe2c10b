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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/atcms-project/atcms-api/api/swagger"
	"github.com/atcms-project/atcms-api/internal/handler"
	"github.com/atcms-project/atcms-api/internal/middleware"
	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/internal/repository"
	"github.com/atcms-project/atcms-api/internal/seed"
	"github.com/atcms-project/atcms-api/internal/service"
	"github.com/atcms-project/atcms-api/pkg/cache"
	"github.com/atcms-project/atcms-api/pkg/config"
	"github.com/atcms-project/atcms-api/pkg/database"
	"github.com/atcms-project/atcms-api/pkg/logger"
	"github.com/atcms-project/atcms-api/pkg/mailer"
	corsmiddleware "github.com/atcms-project/atcms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/atcms-project/atcms-api/pkg/middleware/requestid"
	"github.com/atcms-project/atcms-api/pkg/payment"
	"github.com/atcms-project/atcms-api/pkg/pdf"
	"github.com/atcms-project/atcms-api/pkg/storage"
)

// @title ATCMS API
// @version 1.0.0
// @description Academic transcript and complaint management backend
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	transcriptStore, err := storage.NewLocalStorage(cfg.Transcripts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init transcript storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	if cfg.Seed.Enabled {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := seed.New(userRepo, facultyRepo, logr).Run(seedCtx); err != nil {
			logr.Sugar().Warnw("bootstrap seeding failed", "error", err)
		}
		cancel()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	notifier := service.NewNotifier(mailer.New(cfg.Mailer, logr), cfg.Mailer, logr).WithMetrics(metricsSvc)
	notifier.Start(ctx)
	defer notifier.Stop()

	analyticsCache := cacheRepo
	if !cfg.Analytics.Enabled {
		analyticsCache = repository.NewCacheRepository(nil, logr)
	}

	authSvc := service.NewAuthService(userRepo, facultyRepo, cfg.JWT, nil, logr)
	userSvc := service.NewUserService(userRepo, logr)
	facultySvc := service.NewFacultyService(facultyRepo, logr)
	complaintSvc := service.NewComplaintService(complaintRepo, userRepo, uploadStore, analyticsCache, cfg.Analytics.CacheTTL, nil, logr).
		WithMetrics(metricsSvc)
	transcriptSvc := service.NewTranscriptService(
		transcriptRepo,
		userRepo,
		payment.NewClient(cfg.Payment, logr),
		pdf.NewTranscriptRenderer(),
		transcriptStore,
		notifier,
		analyticsCache,
		cfg.Transcripts,
		cfg.Analytics.CacheTTL,
		nil,
		logr,
	).WithMetrics(metricsSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	facultyHandler := handler.NewFacultyHandler(facultySvc)
	complaintHandler := handler.NewComplaintHandler(complaintSvc, uploadStore, cfg.Uploads.MaxFileSizeBytes)
	transcriptHandler := handler.NewTranscriptHandler(transcriptSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	api.GET("/faculties", facultyHandler.List)
	api.GET("/faculties/:code", facultyHandler.Get)

	users := api.Group("/users", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	users.GET("", userHandler.List)
	users.POST("", authHandler.CreateUser)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id/status", userHandler.SetStatus)

	complaints := api.Group("/complaints", middleware.JWT(authSvc))
	complaints.POST("", complaintHandler.Create)
	complaints.GET("", complaintHandler.List)
	complaints.GET("/assigned", middleware.RequireRoles(models.RoleAdmin), complaintHandler.ListAssigned)
	complaints.GET("/analytics", middleware.RequireStaff(), complaintHandler.Analytics)
	complaints.POST("/bulk-resolve", middleware.RequireStaff(), complaintHandler.BulkResolve)
	complaints.GET("/:id", complaintHandler.Get)
	complaints.PATCH("/:id/status", middleware.RequireStaff(), complaintHandler.UpdateStatus)
	complaints.POST("/:id/comments", complaintHandler.AddComment)
	complaints.POST("/:id/escalate", middleware.RequireStaff(), complaintHandler.Escalate)
	complaints.POST("/:id/resolve", middleware.RequireStaff(), complaintHandler.Resolve)
	complaints.POST("/:id/files", complaintHandler.UploadFiles)

	transcripts := api.Group("/transcripts", middleware.JWT(authSvc))
	transcripts.POST("", transcriptHandler.Create)
	transcripts.GET("", transcriptHandler.List)
	transcripts.GET("/statistics", middleware.RequireStaff(), transcriptHandler.Statistics)
	transcripts.GET("/student/:matricule", middleware.RequireStaff(), transcriptHandler.ByMatricule)
	transcripts.GET("/:id", transcriptHandler.Get)
	transcripts.PATCH("/:id/status", middleware.RequireRoles(models.RoleAdmin), transcriptHandler.UpdateStatus)
	transcripts.GET("/:id/download", transcriptHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
}

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

	_ "github.com/edusuite/enrollment-gateway/api/swagger"
	"github.com/edusuite/enrollment-gateway/internal/handler"
	"github.com/edusuite/enrollment-gateway/internal/middleware"
	"github.com/edusuite/enrollment-gateway/internal/models"
	"github.com/edusuite/enrollment-gateway/internal/repository"
	"github.com/edusuite/enrollment-gateway/internal/service"
	"github.com/edusuite/enrollment-gateway/internal/upstream"
	"github.com/edusuite/enrollment-gateway/pkg/cache"
	"github.com/edusuite/enrollment-gateway/pkg/config"
	"github.com/edusuite/enrollment-gateway/pkg/database"
	"github.com/edusuite/enrollment-gateway/pkg/jobs"
	"github.com/edusuite/enrollment-gateway/pkg/logger"
	corsmiddleware "github.com/edusuite/enrollment-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/edusuite/enrollment-gateway/pkg/middleware/requestid"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

// @title Enrollment Gateway API
// @version 1.0.0
// @description Backend for the multi-step school enrollment wizard
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, lookup caching disabled", "error", err)
		redisClient = nil
	}

	stagingStore, err := storage.NewStagingStore(cfg.Staging.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise staging store", "error", err)
	}

	validate := validator.New()
	coreClient := upstream.New(cfg.CoreAPI, logr)

	userRepo := repository.NewUserRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	coreClient.SetObserver(metricsService.ObserveUpstreamCall)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Lookups.CacheTTL, logr, redisClient != nil)

	authService := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, auditRepo, validate, logr)
	draftService := service.NewDraftService(draftRepo, auditRepo, coreClient, stagingStore, validate, logr)
	commitService := service.NewCommitService(draftRepo, auditRepo, coreClient, stagingStore, nil, metricsService, logr)
	receiptSigner := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
	receiptService := service.NewReceiptService(draftRepo, nil, receiptSigner, logr)
	lookupService := service.NewLookupService(coreClient, cacheService, cfg.Lookups.CacheTTL, logr)
	maintenanceService := service.NewMaintenanceService(draftRepo, stagingStore, cfg.Drafts.TTL, cfg.Staging.OrphanCleanupAfter, cfg.Drafts.CleanupInterval, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bookQueue := jobs.NewQueue("correspondence-book", commitService.CorrespondenceBookHandler(), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	bookQueue.Start(rootCtx)
	defer bookQueue.Stop()
	commitService.SetQueue(bookQueue)

	maintenanceService.Start(rootCtx)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	draftHandler := handler.NewDraftHandler(draftService, commitService, receiptService)
	fileHandler := handler.NewFileHandler(stagingStore, cfg.Staging)
	lookupHandler := handler.NewLookupHandler(lookupService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Token-authenticated download, no Authorization header required.
	api.GET("/receipts/download", draftHandler.DownloadReceipt)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authService), middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	operator := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleRegistrar)

	drafts := api.Group("/enrollment-drafts", middleware.JWT(authService), operator)
	{
		drafts.POST("", draftHandler.Open)
		drafts.GET("/:id", draftHandler.Get)
		drafts.DELETE("/:id", draftHandler.Cancel)
		drafts.PUT("/:id/student", draftHandler.PatchStudent)
		drafts.PUT("/:id/tutors", draftHandler.SetTutors)
		drafts.PUT("/:id/registration", draftHandler.SetRegistration)
		drafts.PUT("/:id/payment-plan", draftHandler.SetPaymentPlan)
		drafts.POST("/:id/documents", draftHandler.AttachDocument)
		drafts.DELETE("/:id/documents/:fileId", draftHandler.DetachDocument)
		drafts.POST("/:id/commit", middleware.Audit(auditRepo, models.AuditActionCommit, "enrollment_drafts"), draftHandler.Commit)
		drafts.GET("/:id/receipt", draftHandler.Receipt)
		drafts.POST("/:id/receipt-link", draftHandler.ReceiptLink)

		drafts.POST("/files/photo", fileHandler.StagePhoto)
		drafts.POST("/files/document", fileHandler.StageDocument)
	}

	lookups := api.Group("/lookups", middleware.JWT(authService), operator, middleware.WithResponseMeta())
	{
		lookups.GET("/tutors", lookupHandler.SearchTutors)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

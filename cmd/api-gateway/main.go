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

	_ "github.com/noah-isme/sma-performance-api/api/swagger"
	"github.com/noah-isme/sma-performance-api/internal/handler"
	"github.com/noah-isme/sma-performance-api/internal/middleware"
	"github.com/noah-isme/sma-performance-api/internal/models"
	"github.com/noah-isme/sma-performance-api/internal/repository"
	"github.com/noah-isme/sma-performance-api/internal/service"
	"github.com/noah-isme/sma-performance-api/pkg/cache"
	"github.com/noah-isme/sma-performance-api/pkg/config"
	"github.com/noah-isme/sma-performance-api/pkg/database"
	"github.com/noah-isme/sma-performance-api/pkg/jobs"
	"github.com/noah-isme/sma-performance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-performance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-performance-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-performance-api/pkg/storage"
)

// @title SMA Performance Report API
// @version 1.0.0
// @description Score uploads, performance analytics and printable teacher reports
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to prepare schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, performance cache disabled", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	scoreRepo := repository.NewScoreRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Performance.CacheTTL, logr, cfg.Performance.CacheEnabled && cacheRepo.Enabled())
	perfSvc := service.NewPerformanceService(scoreRepo, cacheSvc, metricsSvc, logr, service.PerformanceOptions{
		CacheTTL:   cfg.Performance.CacheTTL,
		WindowSize: cfg.Pipeline.WindowSize,
		FullMarks:  cfg.Pipeline.FullMarks,
		Layout: models.PageLayout{
			PageSize:      cfg.Pipeline.PageSize,
			RowsPerColumn: cfg.Pipeline.RowsPerColumn,
			PageCapacity:  cfg.Pipeline.PageCapacity,
			TopN:          cfg.Pipeline.TopSeverityN,
			SubjectOrder:  cfg.Pipeline.SubjectOrder,
		},
		Thresholds: models.SeverityThresholds{
			NoneMax:   cfg.Pipeline.SeverityNone,
			LowMax:    cfg.Pipeline.SeverityLow,
			MediumMax: cfg.Pipeline.SeverityMedium,
		},
	})
	scoreSvc := service.NewScoreService(scoreRepo, cacheSvc, validate, logr, cfg.Performance.MaxUploadRows)

	clients := make([]service.ServiceClient, 0, len(cfg.Clients))
	for _, client := range cfg.Clients {
		clients = append(clients, service.ServiceClient{ID: client.ID, SecretHash: client.SecretHash, Role: models.UserRole(client.Role)})
	}
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Clients:           clients,
	})

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		var queue *jobs.Queue
		reportHandler, queue, err = startReports(ctx, cfg, logr, perfSvc, reportRepo, metricsSvc, validate)
		if err != nil {
			logr.Fatal("failed to start report workers", zap.Error(err))
		}
		defer queue.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"database": scoreRepo,
		"cache":    cacheRepo,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	perfHandler := handler.NewPerformanceHandler(perfSvc, validate)
	scoreHandler := handler.NewScoreHandler(scoreSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/token", authHandler.Token)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	uploaders := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleService)
	secured.POST("/scores/upload", uploaders, scoreHandler.Upload)
	secured.POST("/scores/responses", uploaders, scoreHandler.UploadResponses)

	perf := secured.Group("/performance")
	perf.GET("/trend", perfHandler.Trend)
	perf.GET("/subjects", perfHandler.Subjects)
	perf.GET("/donuts", perfHandler.Donuts)
	perf.GET("/improvement", perfHandler.Improvement)
	perf.GET("/questions", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), perfHandler.Questions)
	perf.GET("/report", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), perfHandler.Report)

	secured.GET("/students/:id/progress",
		middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), middleware.SelfAccess),
		perfHandler.StudentProgress,
	)

	if reportHandler != nil {
		secured.POST("/reports/generate", reportHandler.Generate)
		secured.GET("/reports/status/:id", reportHandler.Status)
		// The signed token is the credential for downloads.
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// startReports wires storage, the worker queue and the notifier, then replays unfinished jobs.
func startReports(
	ctx context.Context,
	cfg *config.Config,
	logr *zap.Logger,
	perfSvc *service.PerformanceService,
	reportRepo *repository.ReportRepository,
	metricsSvc *service.MetricsService,
	validate *validator.Validate,
) (*handler.ReportHandler, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(perfSvc, store, signer, service.ExportConfig{
		APIPrefix:    cfg.APIPrefix,
		ResultTTL:    cfg.Reports.SignedURLTTL,
		ReadyTimeout: cfg.Reports.ReadyTimeout,
	}, logr, nil, nil)

	notifier, err := service.NewNotificationService(ctx, service.NotificationConfig{
		Region:    cfg.Mail.Region,
		FromEmail: cfg.Mail.FromEmail,
		FromName:  cfg.Mail.FromName,
		BaseURL:   cfg.Mail.BaseURL,
	}, logr)
	if err != nil {
		return nil, nil, err
	}

	worker := service.NewReportWorker(reportRepo, exportSvc, notifier, metricsSvc, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		JobTimeout: cfg.Reports.JobTimeout,
		Logger:     logr,
		OnGiveUp:   worker.GiveUp,
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(reportRepo, queue, exportSvc, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	return handler.NewReportHandler(reportSvc), queue, nil
}

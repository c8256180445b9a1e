package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"backoffice/internal/config"
	"backoffice/internal/database"
	_ "backoffice/internal/docs" // Import swagger docs
	"backoffice/internal/handlers"
	"backoffice/internal/logger"
	"backoffice/internal/marketdata"
	"backoffice/internal/metrics"
	"backoffice/internal/middleware"
	"backoffice/internal/services"
	"backoffice/internal/validator"
	"backoffice/internal/worker"
)

// @title           Backoffice API
// @version         1.0
// @description     Multi-tenant portfolio back office: holdings file ingestion, reference data checks and position snapshots.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a tenant token carrying an org_id claim.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()
	m := metrics.New()

	// Services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	portfolioService := services.NewPortfolioService(db)
	instrumentService := services.NewInstrumentService(db)
	snapshotService := services.NewPositionSnapshotService(db)
	forex := marketdata.NewForexClient(
		marketdata.WithBaseURL(appConfig.FXBaseURL),
		marketdata.WithRateLimit(appConfig.FXRateLimitRPS),
	)
	fxService := services.NewFXRateService(db, forex, auditService, "yahoo")
	importService := services.NewPortfolioImportService(db, instrumentService, snapshotService, auditService, m,
		services.ImportConfig{UploadDir: appConfig.UploadDir, BatchSize: appConfig.ImportBatchSize})
	preflightService := services.NewPreflightService(db, importService, instrumentService, fxService, m)
	exporter := services.NewMissingInstrumentExporter(db, importService, preflightService)

	dispatcher := worker.NewDispatcher(importService, m, appConfig.ImportWorkers, appConfig.ImportQueueSize)
	dispatcher.Start()

	// Handlers
	routes := &handlers.Routes{
		Portfolios:  handlers.NewPortfolioHandler(portfolioService, snapshotService),
		Instruments: handlers.NewInstrumentHandler(instrumentService, auditService),
		Imports:     handlers.NewImportHandler(importService, preflightService, exporter, dispatcher),
		FX:          handlers.NewFXHandler(fxService),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging(m))
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.NoRoute(middleware.NotFound())

	routes.Register(router.Group("/api/v1"),
		middleware.TenantMiddleware(appConfig.JWTSecret),
		middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting backoffice API on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Warnw("Import workers did not drain before shutdown", "error", err)
	}
	log.Info("Server stopped")
	return nil
}

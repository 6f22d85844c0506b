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

	"github.com/getsentry/sentry-go"
	"github.com/incial/crm-api/docs"
	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/cache"
	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/database"
	"github.com/incial/crm-api/internal/datawarehouse"
	"github.com/incial/crm-api/internal/http/handler"
	"github.com/incial/crm-api/internal/http/middleware"
	"github.com/incial/crm-api/internal/http/router"
	"github.com/incial/crm-api/internal/jobs"
	"github.com/incial/crm-api/internal/logger"
	"github.com/incial/crm-api/internal/metrics"
	"github.com/incial/crm-api/internal/repository"
	"github.com/incial/crm-api/internal/service"
	"github.com/incial/crm-api/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// @title Incial CRM API
// @version 1.0
// @description Sales project workflow: stage transitions, payments, installation and delay alerts

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)

	// Environment variables in development, Key Vault in staging/production
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			log.Warn("Sentry initialization failed, continuing without it", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("Sentry initialized", zap.String("environment", cfg.Sentry.Environment))
		}
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Redis only backs the alert summary cache; the API runs without it
	var cacheClient *cache.Client
	if cfg.Redis.Addr != "" {
		cacheClient, err = cache.NewClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			log.Warn("Redis unavailable, alert summary cache disabled", zap.Error(err))
			cacheClient = nil
		} else {
			defer func() { _ = cacheClient.Close() }()
		}
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Optional reporting export; failures leave the API running
	dwClient, err := datawarehouse.NewClient(&cfg.DataWarehouse, log)
	if err != nil {
		log.Warn("Data warehouse connection failed, continuing without export", zap.Error(err))
		dwClient = nil
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	clock := service.SystemClock()

	projectRepo := repository.NewProjectRepository(db)
	paymentRepo := repository.NewPaymentTransactionRepository(db)
	historyRepo := repository.NewStageHistoryRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	alertService := service.NewAlertService(db, alertRepo, projectRepo, cacheClient, alertServiceConfig(cfg), m, clock, log)
	projectService := service.NewProjectService(projectRepo, paymentRepo, historyRepo, activityRepo, cfg.App.DefaultRegion, clock, log, db)
	workflowService := service.NewWorkflowService(db, paymentRepo, alertService, m, clock, log)

	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		cacheClient,
		m,
		prometheus.DefaultGatherer,
		authMiddleware,
		rateLimiter,
		handler.NewProjectHandler(projectService, log),
		handler.NewWorkflowHandler(workflowService, projectService, fileStorage, cfg.Storage.MaxUploadSizeMB, log),
		handler.NewAlertHandler(alertService, log),
	)

	scheduler := jobs.NewScheduler(log)
	if cfg.Alerts.Enabled {
		if err := jobs.RegisterAlertScanJob(scheduler, alertService, log, cfg.Alerts.Cron, cfg.Alerts.TimeoutDuration()); err != nil {
			return fmt.Errorf("failed to register alert scan job: %w", err)
		}
	} else {
		log.Info("Scheduled alert scan disabled")
	}
	if err := jobs.RegisterWarehouseExportJob(scheduler, projectService, dwClient, log,
		cfg.DataWarehouse.ExportCron, cfg.DataWarehouse.QueryTimeoutDuration()*10); err != nil {
		log.Error("Failed to register warehouse export job", zap.Error(err))
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			<-scheduler.Stop().Done()
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		select {
		case <-scheduler.Stop().Done():
			log.Info("Scheduler stopped")
		case <-shutdownCtx.Done():
			log.Warn("Scheduler did not stop before the shutdown deadline")
		}

		if err := dwClient.Close(); err != nil {
			log.Warn("Error closing data warehouse connection", zap.Error(err))
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

func alertServiceConfig(cfg *config.Config) service.AlertServiceConfig {
	return service.AlertServiceConfig{
		Thresholds: service.AlertThresholds{
			ReviewDays:       cfg.Alerts.ReviewThresholdDays,
			PaymentDays:      cfg.Alerts.PaymentThresholdDays,
			InstallationDays: cfg.Alerts.InstallThresholdDays,
		},
		SummaryTTL: cfg.Redis.SummaryTTLDuration(),
	}
}

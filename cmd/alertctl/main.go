// Command alertctl runs and inspects delay alerts from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/incial/crm-api/internal/cache"
	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/database"
	"github.com/incial/crm-api/internal/logger"
	"github.com/incial/crm-api/internal/repository"
	"github.com/incial/crm-api/internal/service"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	if err := newRootCmd(openAlertService).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openAlertService wires the alert service against the configured database.
// Metrics are not exported from a one-shot command.
func openAlertService(ctx context.Context) (alertOps, func(), error) {
	cfg, err := config.LoadWithSecrets(ctx, zap.NewNop())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	var cacheClient *cache.Client
	if cfg.Redis.Addr != "" {
		cacheClient, err = cache.NewClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			log.Warn("Redis unavailable, summary cache will not be invalidated", zap.Error(err))
			cacheClient = nil
		}
	}

	svc := service.NewAlertService(db,
		repository.NewAlertRepository(db),
		repository.NewProjectRepository(db),
		cacheClient,
		service.AlertServiceConfig{
			Thresholds: service.AlertThresholds{
				ReviewDays:       cfg.Alerts.ReviewThresholdDays,
				PaymentDays:      cfg.Alerts.PaymentThresholdDays,
				InstallationDays: cfg.Alerts.InstallThresholdDays,
			},
			SummaryTTL: cfg.Redis.SummaryTTLDuration(),
		},
		nil, nil, log)

	closeFn := func() {
		if cacheClient != nil {
			_ = cacheClient.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = log.Sync()
	}
	return svc, closeFn, nil
}

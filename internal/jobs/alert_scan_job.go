package jobs

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/incial/crm-api/internal/service"
	"go.uber.org/zap"
)

// AlertScanJobName is the scheduler name of the delay alert scan
const AlertScanJobName = "alert_scan"

// AlertScanner is the part of the alert service the job drives
type AlertScanner interface {
	Scan(ctx context.Context) (service.ScanResult, error)
}

// AlertScanJob sweeps watched stages for overdue projects
type AlertScanJob struct {
	scanner AlertScanner
	logger  *zap.Logger
	timeout time.Duration
}

func NewAlertScanJob(scanner AlertScanner, logger *zap.Logger, timeout time.Duration) *AlertScanJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &AlertScanJob{
		scanner: scanner,
		logger:  logger,
		timeout: timeout,
	}
}

// Run performs one bounded scan. Called by the scheduler.
func (j *AlertScanJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.scanner.Scan(ctx)
	if err != nil {
		j.logger.Error("scheduled alert scan failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		sentry.CaptureException(err)
		return
	}

	j.logger.Info("scheduled alert scan completed",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)))
}

// RegisterAlertScanJob schedules the scan on cronExpr
func RegisterAlertScanJob(scheduler *Scheduler, scanner AlertScanner, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewAlertScanJob(scanner, logger, timeout)
	return scheduler.AddJob(AlertScanJobName, cronExpr, job.Run)
}

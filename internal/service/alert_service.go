package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/incial/crm-api/internal/cache"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/mapper"
	"github.com/incial/crm-api/internal/metrics"
	"github.com/incial/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const alertSummaryCacheKey = "crm:alerts:summary"

// stageAlerts binds each watched stage to the alert type it raises.
// Leaving the stage retires alerts of that type.
var stageAlerts = map[domain.ProjectStage]domain.AlertType{
	domain.StageInReview:     domain.AlertStageInactivity,
	domain.StageAccounts:     domain.AlertPaymentDelay,
	domain.StageInstallation: domain.AlertInstallationDelay,
}

// AlertThresholds are the number of whole days a project may sit in a
// watched stage before an alert is raised
type AlertThresholds struct {
	ReviewDays       int
	PaymentDays      int
	InstallationDays int
}

// DefaultAlertThresholds returns the standard 7/10/5 day thresholds
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{ReviewDays: 7, PaymentDays: 10, InstallationDays: 5}
}

// AlertServiceConfig tunes the alert engine
type AlertServiceConfig struct {
	Thresholds AlertThresholds
	SummaryTTL time.Duration
}

// AlertService raises delay alerts and manages their lifecycle
type AlertService struct {
	db          *gorm.DB
	alertRepo   *repository.AlertRepository
	projectRepo *repository.ProjectRepository
	cache       *cache.Client
	cfg         AlertServiceConfig
	metrics     *metrics.Metrics
	clock       Clock
	logger      *zap.Logger
}

// NewAlertService creates an AlertService. cacheClient may be nil, in which
// case the summary is always computed from the database.
func NewAlertService(
	db *gorm.DB,
	alertRepo *repository.AlertRepository,
	projectRepo *repository.ProjectRepository,
	cacheClient *cache.Client,
	cfg AlertServiceConfig,
	m *metrics.Metrics,
	clock Clock,
	logger *zap.Logger,
) *AlertService {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.Thresholds == (AlertThresholds{}) {
		cfg.Thresholds = DefaultAlertThresholds()
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = time.Minute
	}
	return &AlertService{
		db:          db,
		alertRepo:   alertRepo,
		projectRepo: projectRepo,
		cache:       cacheClient,
		cfg:         cfg,
		metrics:     m,
		clock:       clock,
		logger:      logger,
	}
}

// Dismiss retires a single alert on behalf of dismissedBy
func (s *AlertService) Dismiss(ctx context.Context, alertID uint, dismissedBy string) (*domain.AlertDTO, error) {
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrAlertNotFound, alertID)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	if !alert.IsActive {
		return nil, fmt.Errorf("%w: %d", ErrAlertAlreadyDismissed, alertID)
	}

	now := s.clock.Now()
	rows, err := s.alertRepo.Dismiss(ctx, alertID, dismissedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to dismiss alert: %w", err)
	}
	if rows == 0 {
		// Lost a race with another dismissal
		return nil, fmt.Errorf("%w: %d", ErrAlertAlreadyDismissed, alertID)
	}

	alert.IsActive = false
	alert.DismissedAt = &now
	alert.DismissedBy = dismissedBy

	s.metrics.RecordAlertDismissed(string(alert.AlertType), "manual", 1)
	s.invalidateSummary(ctx)

	s.logger.Info("alert dismissed",
		zap.Uint("alert_id", alertID),
		zap.Uint("project_id", alert.ProjectID),
		zap.String("dismissed_by", dismissedBy))

	dto := mapper.ToAlertDTO(alert, "")
	return &dto, nil
}

// AutoDismiss retires every active alert of alertType on the project.
// It is a no-op when nothing matches.
func (s *AlertService) AutoDismiss(ctx context.Context, projectID uint, alertType domain.AlertType) (int64, error) {
	rows, err := s.autoDismissWith(ctx, s.alertRepo, projectID, alertType, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.autoDismissed(ctx, projectID, alertType, rows)
	return rows, nil
}

// autoDismissWith runs the system dismissal on the given repository, which
// may be bound to the caller's transaction
func (s *AlertService) autoDismissWith(ctx context.Context, alerts *repository.AlertRepository, projectID uint, alertType domain.AlertType, at time.Time) (int64, error) {
	rows, err := alerts.DismissActiveByType(ctx, projectID, alertType, domain.SystemActor, at)
	if err != nil {
		return 0, fmt.Errorf("failed to auto-dismiss alerts: %w", err)
	}
	return rows, nil
}

// autoDismissed publishes a committed system dismissal
func (s *AlertService) autoDismissed(ctx context.Context, projectID uint, alertType domain.AlertType, rows int64) {
	if rows <= 0 {
		return
	}
	s.metrics.RecordAlertDismissed(string(alertType), "auto", rows)
	s.invalidateSummary(ctx)
	s.logger.Info("alerts auto-dismissed",
		zap.Uint("project_id", projectID),
		zap.String("alert_type", string(alertType)),
		zap.Int64("count", rows))
}

// dismissForStageExit retires alerts bound to the stage a project is leaving.
// It runs on the caller's transaction; the caller publishes after commit.
func (s *AlertService) dismissForStageExit(ctx context.Context, alerts *repository.AlertRepository, projectID uint, from domain.ProjectStage, at time.Time) (domain.AlertType, int64, error) {
	alertType, ok := stageAlerts[from]
	if !ok {
		return "", 0, nil
	}
	rows, err := s.autoDismissWith(ctx, alerts, projectID, alertType, at)
	return alertType, rows, err
}

// ListActive returns every active alert, newest first
func (s *AlertService) ListActive(ctx context.Context) ([]domain.AlertDTO, error) {
	alerts, err := s.alertRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return s.toDTOs(ctx, alerts)
}

// ListForProject returns the active alerts of one project
func (s *AlertService) ListForProject(ctx context.Context, projectID uint) ([]domain.AlertDTO, error) {
	alerts, err := s.alertRepo.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project alerts: %w", err)
	}
	return s.toDTOs(ctx, alerts)
}

// HistoryForProject returns every alert of a project, dismissed ones included
func (s *AlertService) HistoryForProject(ctx context.Context, projectID uint) ([]domain.AlertDTO, error) {
	alerts, err := s.alertRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project alert history: %w", err)
	}
	return s.toDTOs(ctx, alerts)
}

// CountActive returns the number of active alerts
func (s *AlertService) CountActive(ctx context.Context) (int64, error) {
	return s.alertRepo.CountActive(ctx)
}

// Summary counts active alerts by severity and type. Results are cached
// until an alert is created or dismissed.
func (s *AlertService) Summary(ctx context.Context) (*domain.AlertSummaryDTO, error) {
	if s.cache != nil {
		var cached domain.AlertSummaryDTO
		err := s.cache.GetJSON(ctx, alertSummaryCacheKey, &cached)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup("alert_summary", true)
			return &cached, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCacheLookup("alert_summary", false)
		default:
			s.logger.Warn("alert summary cache read failed", zap.Error(err))
		}
	}

	total, err := s.alertRepo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	bySeverity, err := s.alertRepo.CountActiveBySeverity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by severity: %w", err)
	}
	byType, err := s.alertRepo.CountActiveByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by type: %w", err)
	}

	summary := &domain.AlertSummaryDTO{
		TotalAlerts:    total,
		CriticalAlerts: bySeverity[domain.SeverityCritical],
		WarningAlerts:  bySeverity[domain.SeverityWarning],
		InfoAlerts:     bySeverity[domain.SeverityInfo],
		ByType:         byType,
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, alertSummaryCacheKey, summary, s.cfg.SummaryTTL); err != nil {
			s.logger.Warn("alert summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// invalidateSummary drops the cached summary; errors are logged only
func (s *AlertService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, alertSummaryCacheKey); err != nil {
		s.logger.Warn("alert summary cache invalidation failed", zap.Error(err))
	}
}

func (s *AlertService) toDTOs(ctx context.Context, alerts []domain.Alert) ([]domain.AlertDTO, error) {
	ids := make([]uint, 0, len(alerts))
	seen := make(map[uint]bool, len(alerts))
	for _, a := range alerts {
		if !seen[a.ProjectID] {
			seen[a.ProjectID] = true
			ids = append(ids, a.ProjectID)
		}
	}
	names, err := s.projectRepo.GetNamesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load project names: %w", err)
	}

	dtos := make([]domain.AlertDTO, 0, len(alerts))
	for i := range alerts {
		dtos = append(dtos, mapper.ToAlertDTO(&alerts[i], names[alerts[i].ProjectID]))
	}
	return dtos, nil
}

package repository

import (
	"context"
	"time"

	"github.com/incial/crm-api/internal/domain"
	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *AlertRepository) GetByID(ctx context.Context, id uint) (*domain.Alert, error) {
	var alert domain.Alert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ExistsActive reports whether an active alert of the given type exists for the project
func (r *AlertRepository) ExistsActive(ctx context.Context, projectID uint, alertType domain.AlertType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("project_id = ? AND alert_type = ? AND is_active = ?", projectID, alertType, true).
		Count(&count).Error
	return count > 0, err
}

// Dismiss flips a single active alert to dismissed. It returns the number
// of rows changed so callers can tell an already-dismissed alert apart.
func (r *AlertRepository) Dismiss(ctx context.Context, id uint, dismissedBy string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":    false,
			"dismissed_at": at,
			"dismissed_by": dismissedBy,
		})
	return result.RowsAffected, result.Error
}

// DismissActiveByType dismisses every active alert of a type for a project
func (r *AlertRepository) DismissActiveByType(ctx context.Context, projectID uint, alertType domain.AlertType, dismissedBy string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("project_id = ? AND alert_type = ? AND is_active = ?", projectID, alertType, true).
		Updates(map[string]interface{}{
			"is_active":    false,
			"dismissed_at": at,
			"dismissed_by": dismissedBy,
		})
	return result.RowsAffected, result.Error
}

// ListActive returns all active alerts, newest first
func (r *AlertRepository) ListActive(ctx context.Context) ([]domain.Alert, error) {
	var alerts []domain.Alert
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&alerts).Error
	return alerts, err
}

// ListActiveByProject returns the active alerts of one project, newest first
func (r *AlertRepository) ListActiveByProject(ctx context.Context, projectID uint) ([]domain.Alert, error) {
	var alerts []domain.Alert
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&alerts).Error
	return alerts, err
}

// ListByProject returns all alerts of a project including dismissed ones
func (r *AlertRepository) ListByProject(ctx context.Context, projectID uint) ([]domain.Alert, error) {
	var alerts []domain.Alert
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&alerts).Error
	return alerts, err
}

func (r *AlertRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

// CountActiveBySeverity groups active alerts by severity
func (r *AlertRepository) CountActiveBySeverity(ctx context.Context) (map[domain.AlertSeverity]int64, error) {
	type result struct {
		Severity domain.AlertSeverity
		Count    int64
	}
	var results []result
	err := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Select("severity, COUNT(*) as count").
		Where("is_active = ?", true).
		Group("severity").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.AlertSeverity]int64)
	for _, r := range results {
		counts[r.Severity] = r.Count
	}
	return counts, nil
}

// CountActiveByType groups active alerts by alert type
func (r *AlertRepository) CountActiveByType(ctx context.Context) (map[domain.AlertType]int64, error) {
	type result struct {
		AlertType domain.AlertType
		Count     int64
	}
	var results []result
	err := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Select("alert_type, COUNT(*) as count").
		Where("is_active = ?", true).
		Group("alert_type").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.AlertType]int64)
	for _, r := range results {
		counts[r.AlertType] = r.Count
	}
	return counts, nil
}

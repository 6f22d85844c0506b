package repository

import (
	"context"
	"time"

	"github.com/incial/crm-api/internal/domain"
	"gorm.io/gorm"
)

type StageHistoryRepository struct {
	db *gorm.DB
}

func NewStageHistoryRepository(db *gorm.DB) *StageHistoryRepository {
	return &StageHistoryRepository{db: db}
}

// Create records a new stage transition
func (r *StageHistoryRepository) Create(ctx context.Context, entry *domain.StageHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByProject returns all stage history for a project, newest first
func (r *StageHistoryRepository) ListByProject(ctx context.Context, projectID uint) ([]domain.StageHistoryEntry, error) {
	var history []domain.StageHistoryEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("changed_at DESC").
		Order("id DESC").
		Find(&history).Error
	return history, err
}

// CountByProject returns the number of history rows for a project
func (r *StageHistoryRepository) CountByProject(ctx context.Context, projectID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.StageHistoryEntry{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// RecordTransition is a convenience method to create a stage history record
func (r *StageHistoryRepository) RecordTransition(
	ctx context.Context,
	projectID uint,
	fromStage *domain.ProjectStage,
	toStage domain.ProjectStage,
	changedBy string,
	changedByRole string,
	remarks string,
	system bool,
	at time.Time,
) error {
	entry := &domain.StageHistoryEntry{
		ProjectID:         projectID,
		FromStage:         fromStage,
		ToStage:           toStage,
		ChangedBy:         changedBy,
		ChangedByRole:     changedByRole,
		Remarks:           remarks,
		IsSystemTriggered: system,
		ChangedAt:         at,
	}
	return r.Create(ctx, entry)
}

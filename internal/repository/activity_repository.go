package repository

import (
	"context"

	"github.com/incial/crm-api/internal/domain"
	"gorm.io/gorm"
)

// ActivityRepository handles the project activity log.
//
// Index recommendations:
// - CREATE INDEX idx_project_activity_logs_project_id ON project_activity_logs(project_id);
// - CREATE INDEX idx_project_activity_logs_created_at ON project_activity_logs(created_at);
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, entry *domain.ActivityLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByProject returns the activity log of a project, newest first
func (r *ActivityRepository) ListByProject(ctx context.Context, projectID uint) ([]domain.ActivityLogEntry, error) {
	var entries []domain.ActivityLogEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	return entries, err
}

// ListByAction returns a project's entries of one action type, oldest first
func (r *ActivityRepository) ListByAction(ctx context.Context, projectID uint, action domain.ActivityAction) ([]domain.ActivityLogEntry, error) {
	var entries []domain.ActivityLogEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND action_type = ?", projectID, action).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

package repository

import (
	"context"
	"errors"

	"github.com/incial/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetForUpdate loads a project and takes its row lock for the rest of the
// enclosing transaction. Must be called on a repository built from a tx.
func (r *ProjectRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&domain.Project{}, "id = ?", id).Error
}

// ExistsByContactNumber reports whether a project already uses the normalized number
func (r *ProjectRepository) ExistsByContactNumber(ctx context.Context, contactNumber string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Project{}).Where("contact_number = ?", contactNumber)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ProjectFilter narrows project list queries
type ProjectFilter struct {
	Stages    []domain.ProjectStage
	OwnerRole *domain.OwnerRole
}

func (r *ProjectRepository) List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error) {
	var projects []domain.Project
	query := r.db.WithContext(ctx).Model(&domain.Project{})

	if len(filter.Stages) > 0 {
		query = query.Where("current_stage IN ?", filter.Stages)
	}
	if filter.OwnerRole != nil {
		query = query.Where("current_owner_role = ?", *filter.OwnerRole)
	}

	err := query.Order("created_at DESC").Order("id DESC").Find(&projects).Error
	return projects, err
}

// ListByStage returns all projects currently in the given stage
func (r *ProjectRepository) ListByStage(ctx context.Context, stage domain.ProjectStage) ([]domain.Project, error) {
	return r.List(ctx, ProjectFilter{Stages: []domain.ProjectStage{stage}})
}

// ListIDsByStage returns only the IDs, used by the alert sweep to pick candidates
func (r *ProjectRepository) ListIDsByStage(ctx context.Context, stages ...domain.ProjectStage) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.Project{}).
		Where("current_stage IN ?", stages).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// GetNamesByIDs returns project display names keyed by id
func (r *ProjectRepository) GetNamesByIDs(ctx context.Context, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []struct {
		ID     uint
		School string
	}
	err := r.db.WithContext(ctx).Model(&domain.Project{}).
		Select("id, school").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.School
	}
	return names, nil
}

// IsNotFound reports whether err is gorm's record-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

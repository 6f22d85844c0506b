package repository

import (
	"context"

	"github.com/incial/crm-api/internal/domain"
	"gorm.io/gorm"
)

// PaymentTransactionRepository stores the append-only payment ledger
type PaymentTransactionRepository struct {
	db *gorm.DB
}

func NewPaymentTransactionRepository(db *gorm.DB) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

func (r *PaymentTransactionRepository) Create(ctx context.Context, tx *domain.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *PaymentTransactionRepository) GetByID(ctx context.Context, projectID, id uint) (*domain.PaymentTransaction, error) {
	var payment domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByProject returns a project's payments, most recent payment date first
func (r *PaymentTransactionRepository) ListByProject(ctx context.Context, projectID uint) ([]domain.PaymentTransaction, error) {
	var payments []domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("payment_date DESC").
		Order("id DESC").
		Find(&payments).Error
	return payments, err
}

// ListByProjects loads the ledgers of many projects at once, grouped by project
func (r *PaymentTransactionRepository) ListByProjects(ctx context.Context, projectIDs []uint) (map[uint][]domain.PaymentTransaction, error) {
	grouped := make(map[uint][]domain.PaymentTransaction, len(projectIDs))
	if len(projectIDs) == 0 {
		return grouped, nil
	}
	var payments []domain.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("project_id IN ?", projectIDs).
		Order("payment_date DESC").
		Order("id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		grouped[p.ProjectID] = append(grouped[p.ProjectID], p)
	}
	return grouped, nil
}

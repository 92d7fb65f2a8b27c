package transactions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/pagination"
)

// Repository manages persistence for charge audit records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error)
	ListForManualReview(ctx context.Context, limit int, after *pagination.Cursor) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindByBasketID returns gorm.ErrRecordNotFound when the basket was never charged.
func (r *repository) FindByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("basket_id = ?", basketID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListForManualReview pages flagged transactions oldest first, strictly after
// the cursor when one is given.
func (r *repository) ListForManualReview(ctx context.Context, limit int, after *pagination.Cursor) ([]models.Transaction, error) {
	var txns []models.Transaction
	query := r.db.WithContext(ctx).
		Where("manual_review_required = ?", true).
		Order("created_at ASC").
		Order("id ASC")
	if after != nil {
		query = query.Where("created_at > ? OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

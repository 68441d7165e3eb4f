package repo

import (
	"context"
	"errors"

	"github.com/richardliu001/payment-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTransaction inserts record.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.PaymentTransaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// GetTransaction loads one transaction. Returns gorm.ErrRecordNotFound when absent.
func (r *Repository) GetTransaction(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentTransaction, error) {
	var t model.PaymentTransaction
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTransactionForUpdate locks transaction row.
func (r *Repository) GetTransactionForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentTransaction, error) {
	var t model.PaymentTransaction
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransaction with optimistic lock. The version is always bumped.
func (r *Repository) UpdateTransaction(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}, oldVersion uint64) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = oldVersion + 1
	res := tx.WithContext(ctx).
		Model(&model.PaymentTransaction{}).
		Where("id = ? AND version = ?", id, oldVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// ListTransactions returns the newest transactions matching f.
func (r *Repository) ListTransactions(ctx context.Context, tx *gorm.DB, f TransactionFilter) ([]model.PaymentTransaction, error) {
	q := tx.WithContext(ctx).Model(&model.PaymentTransaction{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var txs []model.PaymentTransaction
	err := q.Order("id desc").Limit(limit).Find(&txs).Error
	return txs, err
}

// SerialExists checks whether a serial has already been assigned.
func (r *Repository) SerialExists(ctx context.Context, tx *gorm.DB, serial string) (bool, error) {
	var t model.PaymentTransaction
	err := tx.WithContext(ctx).Select("id").Where("serial = ?", serial).First(&t).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

package repo

import (
	"context"
	"errors"

	"github.com/richardliu001/payment-ledger/internal/model"
	"gorm.io/gorm"
)

// GetApi loads a payment api, deleted ones included. Returns gorm.ErrRecordNotFound when absent.
func (r *Repository) GetApi(ctx context.Context, tx *gorm.DB, id uint64) (*model.PaymentApi, error) {
	var a model.PaymentApi
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveApi inserts or updates an api.
func (r *Repository) SaveApi(ctx context.Context, tx *gorm.DB, api *model.PaymentApi) error {
	return tx.WithContext(ctx).Save(api).Error
}

// ListApis returns all apis ordered by id.
func (r *Repository) ListApis(ctx context.Context, tx *gorm.DB) ([]model.PaymentApi, error) {
	var apis []model.PaymentApi
	err := tx.WithContext(ctx).Order("id").Find(&apis).Error
	return apis, err
}

// UserExists reports whether id names a user that is not deleted.
func (r *Repository) UserExists(ctx context.Context, tx *gorm.DB, id uint64) (bool, error) {
	var u model.User
	err := tx.WithContext(ctx).Select("id").Where("id = ? AND deleted = ?", id, false).First(&u).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

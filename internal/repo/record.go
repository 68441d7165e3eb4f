package repo

import (
	"context"

	"github.com/richardliu001/payment-ledger/internal/model"
	"gorm.io/gorm"
)

// AppendRecord inserts a detail record. There is deliberately no update or delete.
func (r *Repository) AppendRecord(ctx context.Context, tx *gorm.DB, rec *model.DetailRecord) error {
	return tx.WithContext(ctx).Create(rec).Error
}

// FindRecords returns records of one subject in creation order.
func (r *Repository) FindRecords(ctx context.Context, tx *gorm.DB, recordType string, subjectID uint64) ([]model.DetailRecord, error) {
	var recs []model.DetailRecord
	err := tx.WithContext(ctx).
		Where("type = ? AND subject_id = ?", recordType, subjectID).
		Order("id asc").
		Find(&recs).Error
	return recs, err
}

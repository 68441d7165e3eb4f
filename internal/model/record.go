package model

import (
	"time"

	"gorm.io/datatypes"
)

// RecordTypeTransactionDetail tags detail records that belong to a payment transaction.
const RecordTypeTransactionDetail = "PaymentTransactionDetail"

// DetailRecord is one immutable audit entry. Rows are only ever inserted.
type DetailRecord struct {
	ID         uint64            `gorm:"primaryKey" json:"id"`
	Type       string            `gorm:"size:64;not null;index:idx_record_subject,priority:1" json:"type"`
	SubjectID  uint64            `gorm:"not null;index:idx_record_subject,priority:2" json:"subject_id"`
	CreatorID  *uint64           `json:"creator_id,omitempty"`
	Content    string            `gorm:"type:text;not null" json:"content"`
	ExtraData  datatypes.JSONMap `json:"extra_data,omitempty"`
	CreateTime time.Time         `gorm:"not null" json:"create_time"`
}

func (DetailRecord) TableName() string { return "generic_record" }

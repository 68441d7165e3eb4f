package model

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentApi describes a configured payment gateway and the transaction types it accepts.
type PaymentApi struct {
	ID                      uint64                      `gorm:"primaryKey" json:"id"`
	Name                    string                      `gorm:"size:128;not null" json:"name"`
	Type                    string                      `gorm:"size:64;not null" json:"type"`
	SupportTransactionTypes datatypes.JSONSlice[string] `json:"support_transaction_types"`
	Deleted                 bool                        `gorm:"not null;default:false" json:"deleted"`
	CreateTime              time.Time                   `json:"create_time"`
	LastUpdated             time.Time                   `json:"last_updated"`
}

func (PaymentApi) TableName() string { return "payment_api" }

// Supports reports whether txType is in SupportTransactionTypes.
func (a *PaymentApi) Supports(txType string) bool {
	for _, t := range a.SupportTransactionTypes {
		if t == txType {
			return true
		}
	}
	return false
}

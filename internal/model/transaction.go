package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentTransaction is one monetary transaction flowing through a payment api.
// Serial, Type, ApiID, Amount and CurrencyType never change after creation.
type PaymentTransaction struct {
	ID           uint64            `gorm:"primaryKey" json:"id"`
	Serial       string            `gorm:"size:64;not null;uniqueIndex" json:"serial"`
	Type         string            `gorm:"size:64;not null;index" json:"type"`
	ApiID        uint64            `gorm:"not null;index" json:"api_id"`
	Amount       decimal.Decimal   `gorm:"type:numeric(20,8);not null" json:"amount"`
	CurrencyType string            `gorm:"size:16;not null" json:"currency_type"`
	PayerID      *uint64           `json:"payer_id,omitempty"`
	PayeeID      *uint64           `json:"payee_id,omitempty"`
	RelatedID    *uint64           `gorm:"index" json:"related_id,omitempty"`
	Description  string            `gorm:"size:1024;not null" json:"description"`
	State        TransactionState  `gorm:"size:32;not null;index" json:"state"`
	ExtraData    datatypes.JSONMap `json:"extra_data,omitempty"`
	LastError    *string           `gorm:"type:text" json:"last_error,omitempty"`
	Version      uint64            `gorm:"not null;default:0" json:"-"`
	CreateTime   time.Time         `gorm:"not null" json:"create_time"`
	LastUpdated  time.Time         `gorm:"not null" json:"last_updated"`
}

func (PaymentTransaction) TableName() string { return "payment_transaction" }

package model

import "time"

// Outbox event types.
const (
	EventTransactionCreated      = "TransactionCreated"
	EventTransactionStateChanged = "TransactionStateChanged"
)

type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	EventID     string    `gorm:"size:36;not null;uniqueIndex"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID uint64    `gorm:"not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{&PaymentTransaction{}, &PaymentApi{}, &DetailRecord{}, &User{}, &OutboxEvent{}}
}

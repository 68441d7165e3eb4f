package model

import "time"

// User is the minimal view of an account that can pay or receive money.
// Accounts are owned by another subsystem; the ledger only checks existence.
type User struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:128;not null;uniqueIndex" json:"username"`
	Deleted    bool      `gorm:"not null;default:false" json:"deleted"`
	CreateTime time.Time `json:"create_time"`
}

func (User) TableName() string { return "users" }

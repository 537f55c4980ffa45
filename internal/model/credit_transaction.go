package model

import (
	"time"
)

const (
	CreditDeduct = "deduct"
	CreditGrant  = "grant"
)

// CreditTransaction 积分流水，每次余额变化记一条
type CreditTransaction struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"size:64;not null;index" json:"user_id"`
	Type         string    `gorm:"size:20;not null" json:"type"`
	Amount       int       `gorm:"not null" json:"amount"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	GenerationID *string   `gorm:"size:36;index" json:"generation_id,omitempty"`
	Description  string    `gorm:"size:255" json:"description"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

package model

import (
	"time"
)

// PaymentEvent 已处理的支付回调，用于幂等
type PaymentEvent struct {
	ID          int64     `gorm:"primaryKey"`
	EventID     string    `gorm:"size:100;uniqueIndex;not null"`
	EventType   string    `gorm:"size:100;not null"`
	ProfileID   string    `gorm:"size:64;index"`
	Plan        string    `gorm:"size:20"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}

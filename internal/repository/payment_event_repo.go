package repository

import (
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
)

type PaymentEventRepository struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) WithTx(tx *gorm.DB) *PaymentEventRepository {
	return &PaymentEventRepository{db: tx}
}

func (r *PaymentEventRepository) Exists(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.PaymentEvent{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}

func (r *PaymentEventRepository) Create(event *model.PaymentEvent) error {
	return r.db.Create(event).Error
}

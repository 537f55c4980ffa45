package repository

import (
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
)

// CreditRepository 积分流水
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) WithTx(tx *gorm.DB) *CreditRepository {
	return &CreditRepository{db: tx}
}

func (r *CreditRepository) Record(entry *model.CreditTransaction) error {
	return r.db.Create(entry).Error
}

func (r *CreditRepository) ListByUser(userID string, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	var entries []*model.CreditTransaction
	var total int64

	query := r.db.Model(&model.CreditTransaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&entries).Error
	return entries, total, err
}

// SumByGeneration 某次生成对应的流水合计，用于核对是否已结算
func (r *CreditRepository) SumByGeneration(generationID string) (int, error) {
	var sum int
	err := r.db.Model(&model.CreditTransaction{}).
		Where("generation_id = ?", generationID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/depix/seem_server/internal/model"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

func (r *ProfileRepository) Create(profile *model.Profile) error {
	return r.db.Create(profile).Error
}

func (r *ProfileRepository) GetByID(id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByEmail(email string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.Where("email = ?", email).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Profile{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// CreateIfMissing 已存在时不做任何修改，返回是否新建
func (r *ProfileRepository) CreateIfMissing(profile *model.Profile) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(profile)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Deduct 条件扣减：余额足够时减去 amount。
// 余额不足（被并发请求耗尽）时把余额置 0，clamped 返回 true。
func (r *ProfileRepository) Deduct(id string, amount int) (balance int, clamped bool, err error) {
	result := r.db.Model(&model.Profile{}).
		Where("id = ? AND credits >= ?", id, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		return 0, false, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.Balance(id); err != nil {
			return 0, false, err
		}
		if err := r.db.Model(&model.Profile{}).Where("id = ?", id).Update("credits", 0).Error; err != nil {
			return 0, false, err
		}
		clamped = true
	}

	balance, err = r.Balance(id)
	return balance, clamped, err
}

// Balance 读取当前余额
func (r *ProfileRepository) Balance(id string) (int, error) {
	var profile model.Profile
	err := r.db.Select("credits").Where("id = ?", id).First(&profile).Error
	if err != nil {
		return 0, err
	}
	return profile.Credits, nil
}

// AssignPlan 设置套餐并把余额置为套餐额度
func (r *ProfileRepository) AssignPlan(id, plan string, credits int) error {
	if _, err := r.Balance(id); err != nil {
		return err
	}
	return r.db.Model(&model.Profile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"selected_plan": plan,
		"credits":       credits,
	}).Error
}

// ClearPlan 取消订阅，保留剩余积分
func (r *ProfileRepository) ClearPlan(id string) error {
	return r.db.Model(&model.Profile{}).Where("id = ?", id).
		Update("selected_plan", model.PlanNone).Error
}

func (r *ProfileRepository) SetActive(id string, active bool) error {
	if _, err := r.Balance(id); err != nil {
		return err
	}
	return r.db.Model(&model.Profile{}).Where("id = ?", id).Update("is_active", active).Error
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package model

import (
	"time"
)

// 套餐
const (
	PlanNone     = "none"
	PlanBasic    = "basic"
	PlanPro      = "pro"
	PlanUltimate = "ultimate"
)

// Profile 用户账户，与认证提供方的会话/凭证分离
type Profile struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Credits      int       `gorm:"not null;default:0" json:"credits"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	SelectedPlan string    `gorm:"size:20;not null;default:none" json:"selected_plan"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Credential 本地认证提供方使用的登录凭证
type Credential struct {
	ID           int64  `gorm:"primaryKey"`
	ProfileID    string `gorm:"size:64;uniqueIndex;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Credential) TableName() string {
	return "credentials"
}

// ValidPlan 判断套餐名是否合法
func ValidPlan(plan string) bool {
	switch plan {
	case PlanNone, PlanBasic, PlanPro, PlanUltimate:
		return true
	}
	return false
}

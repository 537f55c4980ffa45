package dto

import "time"

// SignupRequest 注册请求
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 注册/登录响应。需要邮箱确认时 token 为空
type AuthResponse struct {
	Token   string       `json:"token,omitempty"`
	Profile *ProfileInfo `json:"profile"`
}

// ProfileInfo 用户信息（返回给前端）
type ProfileInfo struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Credits      int       `json:"credits"`
	SelectedPlan string    `json:"selectedPlan"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreditTransactionInfo 积分流水
type CreditTransactionInfo struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balanceAfter"`
	GenerationID string    `json:"generationId,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PageRequest 通用分页参数
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Normalize 填充默认分页
func (p *PageRequest) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
}

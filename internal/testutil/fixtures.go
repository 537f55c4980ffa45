package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
)

// TestProfile 创建测试用户
func TestProfile(t *testing.T, db *gorm.DB, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()

	id := uuid.NewString()
	profile := &model.Profile{
		ID:           id,
		Email:        fmt.Sprintf("test_%s@example.com", id[:8]),
		Credits:      10,
		IsActive:     true,
		SelectedPlan: model.PlanNone,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}
	// gorm 会忽略 bool 零值，单独写入
	if !profile.IsActive {
		if err := db.Model(profile).Update("is_active", false).Error; err != nil {
			t.Fatalf("Failed to deactivate test profile: %v", err)
		}
	}

	return profile
}

// WithProfileID 设置用户 ID
func WithProfileID(id string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.ID = id
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Email = email
	}
}

// WithCredits 设置积分余额
func WithCredits(credits int) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Credits = credits
	}
}

// WithPlan 设置套餐
func WithPlan(plan string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.SelectedPlan = plan
	}
}

// Inactive 停用账户
func Inactive() func(*model.Profile) {
	return func(p *model.Profile) {
		p.IsActive = false
	}
}

// TestGeneration 创建测试生成记录
func TestGeneration(t *testing.T, db *gorm.DB, userID string, opts ...func(*model.Generation)) *model.Generation {
	t.Helper()

	gen := &model.Generation{
		ID:              uuid.NewString(),
		UserID:          userID,
		Prompt:          fmt.Sprintf("a test prompt %d", time.Now().UnixNano()%10000),
		AspectRatio:     "1x1",
		StyleType:       "AUTO",
		NumImages:       1,
		RenderingSpeed:  "DEFAULT",
		MagicPrompt:     true,
		GeneratedImages: model.StringArray{},
		Status:          model.GenerationPending,
		CreditsUsed:     1,
	}

	for _, opt := range opts {
		opt(gen)
	}

	if err := db.Create(gen).Error; err != nil {
		t.Fatalf("Failed to create test generation: %v", err)
	}

	return gen
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.Generation) {
	return func(g *model.Generation) {
		g.Status = status
		if status == model.GenerationCompleted && len(g.GeneratedImages) == 0 {
			g.GeneratedImages = model.StringArray{"https://img.example.com/1.png"}
		}
		if status == model.GenerationFailed && g.ErrorMessage == "" {
			g.ErrorCode = "upstream_error"
			g.ErrorMessage = "upstream failure"
		}
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(at time.Time) func(*model.Generation) {
	return func(g *model.Generation) {
		g.CreatedAt = at
		g.UpdatedAt = at
	}
}

// WithCreditsUsed 设置消耗积分
func WithCreditsUsed(n int) func(*model.Generation) {
	return func(g *model.Generation) {
		g.CreditsUsed = n
	}
}

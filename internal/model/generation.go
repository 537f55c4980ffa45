package model

import (
	"time"
)

// 生成记录状态，只能向前流转
const (
	GenerationPending    = "pending"
	GenerationGenerating = "generating"
	GenerationCompleted  = "completed"
	GenerationFailed     = "failed"
)

type Generation struct {
	ID                    string      `gorm:"primaryKey;size:36" json:"id"`
	UserID                string      `gorm:"size:64;not null;index" json:"user_id"`
	Prompt                string      `gorm:"type:text;not null" json:"prompt"`
	AspectRatio           string      `gorm:"size:10;not null" json:"aspect_ratio"`
	StyleType             string      `gorm:"size:20;not null" json:"style_type"`
	NumImages             int         `gorm:"not null" json:"num_images"`
	RenderingSpeed        string      `gorm:"size:20;not null" json:"rendering_speed"`
	MagicPrompt           bool        `gorm:"not null" json:"magic_prompt"`
	CharacterReferenceURL *string     `gorm:"size:1000" json:"character_reference_url,omitempty"`
	HasReference          bool        `gorm:"column:has_character_reference;not null;default:false" json:"has_character_reference"`
	GeneratedImages       StringArray `gorm:"type:json" json:"generated_images"`
	Status                string      `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreditsUsed           int         `gorm:"not null" json:"credits_used"`
	ErrorCode             string      `gorm:"size:50" json:"error_code,omitempty"`
	ErrorMessage          string      `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt             *time.Time  `json:"started_at,omitempty"`
	CompletedAt           *time.Time  `json:"completed_at,omitempty"`
	CreatedAt             time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

func (Generation) TableName() string {
	return "generations"
}

// IsTerminal 是否已处于终态
func (g *Generation) IsTerminal() bool {
	return g.Status == GenerationCompleted || g.Status == GenerationFailed
}

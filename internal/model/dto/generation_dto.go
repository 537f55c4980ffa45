package dto

import "time"

// 默认生成参数
const (
	DefaultAspectRatio    = "1x1"
	DefaultStyleType      = "AUTO"
	DefaultNumImages      = 1
	DefaultRenderingSpeed = "DEFAULT"
)

var (
	AspectRatios    = []string{"1x1", "16x9", "9x16", "4x3", "3x4", "3x2", "2x3", "4x5", "5x4"}
	StyleTypes      = []string{"AUTO", "GENERAL", "REALISTIC", "DESIGN", "FICTION"}
	RenderingSpeeds = []string{"TURBO", "DEFAULT", "QUALITY"}
)

// GenerateRequest POST /generate 的表单字段，文件字段由 handler 单独读取
type GenerateRequest struct {
	Prompt                string `form:"prompt" binding:"required,min=10,max=1000"`
	AspectRatio           string `form:"aspectRatio" binding:"omitempty,oneof=1x1 16x9 9x16 4x3 3x4 3x2 2x3 4x5 5x4"`
	StyleType             string `form:"styleType" binding:"omitempty,oneof=AUTO GENERAL REALISTIC DESIGN FICTION"`
	NumImages             *int   `form:"numImages" binding:"omitempty,min=1,max=4"`
	RenderingSpeed        string `form:"renderingSpeed" binding:"omitempty,oneof=TURBO DEFAULT QUALITY"`
	MagicPrompt           *bool  `form:"magicPrompt"`
	CharacterReferenceURL string `form:"characterReferenceUrl" binding:"omitempty,url,max=1000"`
}

// ApplyDefaults 补全未提交的可选字段
func (r *GenerateRequest) ApplyDefaults() {
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	if r.StyleType == "" {
		r.StyleType = DefaultStyleType
	}
	if r.NumImages == nil {
		n := DefaultNumImages
		r.NumImages = &n
	}
	if r.RenderingSpeed == "" {
		r.RenderingSpeed = DefaultRenderingSpeed
	}
	if r.MagicPrompt == nil {
		on := true
		r.MagicPrompt = &on
	}
}

// Images 返回图片数量，未设置时为默认值
func (r *GenerateRequest) Images() int {
	if r.NumImages == nil {
		return DefaultNumImages
	}
	return *r.NumImages
}

// GenerateResponse POST /generate 成功响应
type GenerateResponse struct {
	Generation *GenerationResult `json:"generation"`
}

type GenerationResult struct {
	ID               string   `json:"id"`
	Images           []string `json:"images"`
	CreditsUsed      int      `json:"creditsUsed"`
	RemainingCredits int      `json:"remainingCredits"`
}

// GenerationListRequest GET /generations 查询参数
type GenerationListRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending generating completed failed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GenerationInfo 生成记录详情
type GenerationInfo struct {
	ID                    string     `json:"id"`
	Prompt                string     `json:"prompt"`
	AspectRatio           string     `json:"aspectRatio"`
	StyleType             string     `json:"styleType"`
	NumImages             int        `json:"numImages"`
	RenderingSpeed        string     `json:"renderingSpeed"`
	MagicPrompt           bool       `json:"magicPrompt"`
	CharacterReferenceURL string     `json:"characterReferenceUrl,omitempty"`
	HasReference          bool       `json:"hasCharacterReference"`
	Images                []string   `json:"images"`
	Status                string     `json:"status"`
	CreditsUsed           int        `json:"creditsUsed"`
	ErrorCode             string     `json:"errorCode,omitempty"`
	ErrorMessage          string     `json:"errorMessage,omitempty"`
	StartedAt             *time.Time `json:"startedAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// EstimateRequest GET /credits/estimate 查询参数
type EstimateRequest struct {
	NumImages      int    `form:"numImages" binding:"required,min=1,max=4"`
	RenderingSpeed string `form:"renderingSpeed" binding:"omitempty,oneof=TURBO DEFAULT QUALITY"`
	HasReference   bool   `form:"hasReference"`
}

type EstimateResponse struct {
	NumImages      int    `json:"numImages"`
	RenderingSpeed string `json:"renderingSpeed"`
	HasReference   bool   `json:"hasReference"`
	Credits        int    `json:"credits"`
}

// OptionsResponse GET /generate/options
type OptionsResponse struct {
	AspectRatios    []string       `json:"aspectRatios"`
	StyleTypes      []string       `json:"styleTypes"`
	RenderingSpeeds []string       `json:"renderingSpeeds"`
	NumImages       RangeInfo      `json:"numImages"`
	Prompt          RangeInfo      `json:"promptLength"`
	Defaults        OptionDefaults `json:"defaults"`
	Pricing         interface{}    `json:"pricing"`
}

type RangeInfo struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type OptionDefaults struct {
	AspectRatio    string `json:"aspectRatio"`
	StyleType      string `json:"styleType"`
	NumImages      int    `json:"numImages"`
	RenderingSpeed string `json:"renderingSpeed"`
	MagicPrompt    bool   `json:"magicPrompt"`
}

// Normalize 填充默认分页
func (r *GenerationListRequest) Normalize() {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = 20
	}
}

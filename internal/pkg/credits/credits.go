// Package credits 计算一次生成请求需要消耗的积分
package credits

const (
	SpeedTurbo   = "TURBO"
	SpeedDefault = "DEFAULT"
	SpeedQuality = "QUALITY"
)

// Required 返回生成 numImages 张图片所需积分。
// 每张图 1 积分，带参考图时翻倍，QUALITY 速度再乘 1.5 并向上取整。
func Required(numImages int, renderingSpeed string, hasReference bool) int {
	if numImages <= 0 {
		return 0
	}
	base := numImages
	if hasReference {
		base += numImages
	}
	if renderingSpeed == SpeedQuality {
		base = (3*base + 1) / 2
	}
	return base
}

// Pricing 描述积分规则，供前端展示
type Pricing struct {
	PerImage            int     `json:"perImage"`
	ReferenceMultiplier int     `json:"referenceMultiplier"`
	QualityMultiplier   float64 `json:"qualityMultiplier"`
}

// DefaultPricing 与 Required 保持一致
var DefaultPricing = Pricing{
	PerImage:            1,
	ReferenceMultiplier: 2,
	QualityMultiplier:   1.5,
}

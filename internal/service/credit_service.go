package service

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/credits"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/repository"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// InsufficientCreditsError 携带所需与可用积分，errors.Is 匹配 ErrInsufficientCredits
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// CreditService 积分检查、结算与发放
type CreditService struct {
	profileRepo *repository.ProfileRepository
	creditRepo  *repository.CreditRepository
	log         *slog.Logger
}

func NewCreditService(profileRepo *repository.ProfileRepository, creditRepo *repository.CreditRepository, log *slog.Logger) *CreditService {
	return &CreditService{
		profileRepo: profileRepo,
		creditRepo:  creditRepo,
		log:         log,
	}
}

// Authorize 读取账户并确认其可用
func (s *CreditService) Authorize(userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.GetByID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrAccountInactive
	}
	return profile, nil
}

// Check 余额不足时返回 *InsufficientCreditsError
func (s *CreditService) Check(profile *model.Profile, required int) error {
	if profile.Credits < required {
		return &InsufficientCreditsError{Required: required, Available: profile.Credits}
	}
	return nil
}

// Settle 在 tx 内扣减积分并写流水，返回扣减后的余额
func (s *CreditService) Settle(tx *gorm.DB, userID, generationID string, amount int) (int, error) {
	balance, clamped, err := s.profileRepo.WithTx(tx).Deduct(userID, amount)
	if err != nil {
		return 0, fmt.Errorf("deduct credits: %w", err)
	}

	description := "image generation"
	if clamped {
		// 并发请求先一步耗尽了余额
		description = "image generation (balance clamped to zero)"
		s.log.Warn("credit balance clamped during settlement",
			slog.String("user_id", userID),
			slog.String("generation_id", generationID),
			slog.Int("amount", amount))
	}

	genID := generationID
	if err := s.creditRepo.WithTx(tx).Record(&model.CreditTransaction{
		UserID:       userID,
		Type:         model.CreditDeduct,
		Amount:       -amount,
		BalanceAfter: balance,
		GenerationID: &genID,
		Description:  description,
	}); err != nil {
		return 0, fmt.Errorf("record deduction: %w", err)
	}
	return balance, nil
}

// Grant 在 tx 内记录一次发放，balanceAfter 为发放后的余额
func (s *CreditService) Grant(tx *gorm.DB, userID string, amount, balanceAfter int, description string) error {
	if err := s.creditRepo.WithTx(tx).Record(&model.CreditTransaction{
		UserID:       userID,
		Type:         model.CreditGrant,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
	}); err != nil {
		s.log.Error("failed to record credit grant", slog.String("user_id", userID), sl.Err(err))
		return fmt.Errorf("record grant: %w", err)
	}
	return nil
}

// Transactions 分页获取积分流水
func (s *CreditService) Transactions(userID string, page, pageSize int) ([]*dto.CreditTransactionInfo, int64, error) {
	entries, total, err := s.creditRepo.ListByUser(userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.CreditTransactionInfo, 0, len(entries))
	for _, e := range entries {
		item := &dto.CreditTransactionInfo{
			ID:           e.ID,
			Type:         e.Type,
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Description:  e.Description,
			CreatedAt:    e.CreatedAt,
		}
		if e.GenerationID != nil {
			item.GenerationID = *e.GenerationID
		}
		items = append(items, item)
	}
	return items, total, nil
}

// Estimate 计算一次请求的积分
func (s *CreditService) Estimate(req *dto.EstimateRequest) *dto.EstimateResponse {
	speed := req.RenderingSpeed
	if speed == "" {
		speed = dto.DefaultRenderingSpeed
	}
	return &dto.EstimateResponse{
		NumImages:      req.NumImages,
		RenderingSpeed: speed,
		HasReference:   req.HasReference,
		Credits:        credits.Required(req.NumImages, speed, req.HasReference),
	}
}

// Options 前端可选的生成参数与计价规则
func (s *CreditService) Options() *dto.OptionsResponse {
	return &dto.OptionsResponse{
		AspectRatios:    dto.AspectRatios,
		StyleTypes:      dto.StyleTypes,
		RenderingSpeeds: dto.RenderingSpeeds,
		NumImages:       dto.RangeInfo{Min: 1, Max: 4},
		Prompt:          dto.RangeInfo{Min: 10, Max: 1000},
		Defaults: dto.OptionDefaults{
			AspectRatio:    dto.DefaultAspectRatio,
			StyleType:      dto.DefaultStyleType,
			NumImages:      dto.DefaultNumImages,
			RenderingSpeed: dto.DefaultRenderingSpeed,
			MagicPrompt:    true,
		},
		Pricing: credits.DefaultPricing,
	}
}

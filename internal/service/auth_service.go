package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/repository"
)

// WelcomeMailer 注册成功后的通知
type WelcomeMailer interface {
	Enabled() bool
	SendWelcome(to string, credits int) error
}

type AuthService struct {
	db            *gorm.DB
	provider      IdentityProvider
	profileRepo   *repository.ProfileRepository
	creditService *CreditService
	mailer        WelcomeMailer
	signupBonus   int
	log           *slog.Logger
}

func NewAuthService(
	db *gorm.DB,
	provider IdentityProvider,
	profileRepo *repository.ProfileRepository,
	creditService *CreditService,
	mailer WelcomeMailer,
	signupBonus int,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		db:            db,
		provider:      provider,
		profileRepo:   profileRepo,
		creditService: creditService,
		mailer:        mailer,
		signupBonus:   signupBonus,
		log:           log,
	}
}

// SignUp 创建凭证并建立账户
func (s *AuthService) SignUp(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error) {
	exists, err := s.profileRepo.ExistsByEmail(normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	identity, err := s.provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	profile, created, err := s.EnsureProfile(identity.UserID, identity.Email)
	if err != nil {
		return nil, err
	}

	if created && s.mailer != nil && s.mailer.Enabled() {
		go func(to string, credits int) {
			if err := s.mailer.SendWelcome(to, credits); err != nil {
				s.log.Warn("failed to send welcome email", slog.String("user_id", identity.UserID), sl.Err(err))
			}
		}(profile.Email, profile.Credits)
	}

	s.log.Info("user signed up", slog.String("user_id", profile.ID), slog.Bool("created", created))

	return &dto.AuthResponse{
		Token:   identity.Token,
		Profile: buildProfileInfo(profile),
	}, nil
}

// Login 校验凭证并返回会话
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	identity, err := s.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	// 在外部创建的 Supabase 用户首次登录时补建账户
	profile, _, err := s.EnsureProfile(identity.UserID, identity.Email)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		Token:   identity.Token,
		Profile: buildProfileInfo(profile),
	}, nil
}

// Authenticate 解析会话 token，返回用户 ID
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	return s.provider.Verify(ctx, token)
}

// EnsureProfile 账户不存在时创建，并发放注册赠送积分。重复调用不会重复发放
func (s *AuthService) EnsureProfile(userID, email string) (*model.Profile, bool, error) {
	var profile *model.Profile
	var created bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.profileRepo.WithTx(tx)
		var err error
		created, err = repo.CreateIfMissing(&model.Profile{
			ID:           userID,
			Email:        normalizeEmail(email),
			Credits:      s.signupBonus,
			IsActive:     true,
			SelectedPlan: model.PlanNone,
		})
		if err != nil {
			return err
		}

		profile, err = repo.GetByID(userID)
		if err != nil {
			if repository.IsNotFound(err) {
				// 邮箱被另一个账户占用
				return ErrEmailExists
			}
			return err
		}

		if created && s.signupBonus > 0 {
			return s.creditService.Grant(tx, userID, s.signupBonus, profile.Credits, "signup bonus")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("ensure profile: %w", err)
	}
	return profile, created, nil
}

// Me 当前用户信息
func (s *AuthService) Me(userID string) (*dto.ProfileInfo, error) {
	profile, err := s.profileRepo.GetByID(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return buildProfileInfo(profile), nil
}

func buildProfileInfo(p *model.Profile) *dto.ProfileInfo {
	return &dto.ProfileInfo{
		ID:           p.ID,
		Email:        p.Email,
		Credits:      p.Credits,
		SelectedPlan: p.SelectedPlan,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
	}
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/pkg/jwt"
	"github.com/depix/seem_server/internal/pkg/supabase"
	"github.com/depix/seem_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

// Identity 认证提供方确认的身份，Token 为空表示需要先确认邮箱
type Identity struct {
	UserID string
	Email  string
	Token  string
}

// IdentityProvider 外部凭证/会话协作方
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	Verify(ctx context.Context, token string) (string, error)
}

// LocalProvider bcrypt 凭证 + HS256 JWT
type LocalProvider struct {
	credentialRepo *repository.CredentialRepository
	secret         string
	expireHours    int
}

func NewLocalProvider(credentialRepo *repository.CredentialRepository, secret string, expireHours int) *LocalProvider {
	return &LocalProvider{
		credentialRepo: credentialRepo,
		secret:         secret,
		expireHours:    expireHours,
	}
}

func (p *LocalProvider) SignUp(_ context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	exists, err := p.credentialRepo.ExistsByEmail(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		ProfileID:    uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := p.credentialRepo.Create(cred); err != nil {
		return nil, err
	}

	token, err := jwt.GenerateToken(cred.ProfileID, p.secret, p.expireHours)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: cred.ProfileID, Email: email, Token: token}, nil
}

func (p *LocalProvider) SignIn(_ context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	cred, err := p.credentialRepo.GetByEmail(email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(cred.ProfileID, p.secret, p.expireHours)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: cred.ProfileID, Email: cred.Email, Token: token}, nil
}

func (p *LocalProvider) Verify(_ context.Context, token string) (string, error) {
	claims, err := jwt.ParseToken(token, p.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// SupabaseAuth supabase.Auth 中用到的方法
type SupabaseAuth interface {
	SignUp(email, password string) (*supabase.User, error)
	SignIn(email, password string) (*supabase.User, error)
	Verify(token string) (*supabase.User, error)
}

// SupabaseProvider 把凭证和会话交给 Supabase Auth
type SupabaseProvider struct {
	auth SupabaseAuth
}

func NewSupabaseProvider(auth SupabaseAuth) *SupabaseProvider {
	return &SupabaseProvider{auth: auth}
}

func (p *SupabaseProvider) SignUp(_ context.Context, email, password string) (*Identity, error) {
	user, err := p.auth.SignUp(normalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: user.ID, Email: user.Email, Token: user.AccessToken}, nil
}

func (p *SupabaseProvider) SignIn(_ context.Context, email, password string) (*Identity, error) {
	user, err := p.auth.SignIn(normalizeEmail(email), password)
	if err != nil {
		if errors.Is(err, supabase.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &Identity{UserID: user.ID, Email: user.Email, Token: user.AccessToken}, nil
}

func (p *SupabaseProvider) Verify(_ context.Context, token string) (string, error) {
	user, err := p.auth.Verify(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return user.ID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

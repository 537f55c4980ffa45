// Package supabase 包装 Supabase 的认证与存储客户端
package supabase

import (
	"errors"
	"fmt"

	"github.com/supabase-community/gotrue-go/types"
	supa "github.com/supabase-community/supabase-go"
)

var (
	ErrInvalidCredentials = errors.New("supabase: invalid email or password")
	ErrInvalidToken       = errors.New("supabase: invalid session token")
	ErrSignupFailed       = errors.New("supabase: signup failed")
)

// NewClient 使用 service role key 创建客户端
func NewClient(url, serviceKey string) (*supa.Client, error) {
	client, err := supa.NewClient(url, serviceKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// User 认证后得到的身份，AccessToken 在需要邮箱确认时为空
type User struct {
	ID          string
	Email       string
	AccessToken string
}

// AuthAPI gotrue.Client 中用到的部分
type AuthAPI interface {
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
}

type Auth struct {
	api         AuthAPI
	userByToken func(token string) (*types.UserResponse, error)
}

func NewAuth(client *supa.Client) *Auth {
	return &Auth{
		api: client.Auth,
		userByToken: func(token string) (*types.UserResponse, error) {
			return client.Auth.WithToken(token).GetUser()
		},
	}
}

func (a *Auth) SignUp(email, password string) (*User, error) {
	resp, err := a.api.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignupFailed, err)
	}
	return &User{
		ID:          resp.User.ID.String(),
		Email:       resp.User.Email,
		AccessToken: resp.Session.AccessToken,
	}, nil
}

func (a *Auth) SignIn(email, password string) (*User, error) {
	resp, err := a.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return &User{
		ID:          resp.User.ID.String(),
		Email:       resp.User.Email,
		AccessToken: resp.AccessToken,
	}, nil
}

// Verify 校验 access token 并返回对应用户
func (a *Auth) Verify(token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	resp, err := a.userByToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &User{
		ID:          resp.ID.String(),
		Email:       resp.Email,
		AccessToken: token,
	}, nil
}

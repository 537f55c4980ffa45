package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/model/dto"
	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/pkg/supabase"
	"github.com/depix/seem_server/internal/service"
)

// SessionCookie 登录后写入的会话 cookie
type SessionCookie struct {
	Name   string
	MaxAge int // 秒
	Secure bool
}

type AuthHandler struct {
	authService *service.AuthService
	cookie      SessionCookie
	log         *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, cookie SessionCookie, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		log:         log,
	}
}

// Signup 用户注册
// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, bindErrors(c, &req, err))
		return
	}

	resp, err := h.authService.SignUp(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists):
			response.ValidationError(c, []response.FieldError{{Field: "email", Message: "is already registered"}})
		case errors.Is(err, supabase.ErrSignupFailed):
			response.ParamError(c, "signup was rejected")
		default:
			h.log.Error("signup failed", sl.Err(err))
			response.ServerError(c, "")
		}
		return
	}

	h.setSession(c, resp.Token)
	response.SuccessWithMessage(c, "signed up", resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, bindErrors(c, &req, err))
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.AuthError(c, err.Error())
		case errors.Is(err, service.ErrEmailExists):
			response.PermissionError(c, "email belongs to another account")
		default:
			h.log.Error("login failed", sl.Err(err))
			response.ServerError(c, "")
		}
		return
	}

	h.setSession(c, resp.Token)
	response.SuccessWithMessage(c, "logged in", resp)
}

// Logout 清除会话 cookie
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	response.Success(c, nil)
}

// Me 当前用户
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	profile, err := h.authService.Me(userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			response.NotFoundError(c, "profile not found")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, profile)
}

func (h *AuthHandler) setSession(c *gin.Context, token string) {
	if token == "" || h.cookie.Name == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, h.cookie.MaxAge, "/", "", h.cookie.Secure, true)
}

package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/pkg/sl"
)

const (
	UserIDKey = "userID"
)

// TokenAuthenticator 把会话 token 解析为用户 ID
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Auth 会话认证中间件，先读 Authorization: Bearer，再读 cookie
func Auth(auth TokenAuthenticator, cookieName string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := TokenFromRequest(c, cookieName)
		if !ok {
			response.AuthError(c, "missing session token")
			c.Abort()
			return
		}

		userID, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Debug("session rejected", slog.String("path", c.FullPath()), sl.Err(err))
			response.AuthError(c, "invalid or expired session")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// TokenFromRequest 提取会话 token。Authorization 头格式错误时不回退到 cookie
func TokenFromRequest(c *gin.Context, cookieName string) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			return "", false
		}
		return token, true
	}
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token, true
		}
	}
	return "", false
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/depix/seem_server/internal/pkg/ratelimit"
	"github.com/depix/seem_server/internal/pkg/response"
)

func rateLimitedRouter(limiter ratelimit.Limiter) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(limiter, nil, testLogger))
	router.POST("/generate", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doPost(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/generate", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_RejectsAfterLimit(t *testing.T) {
	router := rateLimitedRouter(ratelimit.NewMemoryLimiter(2, time.Minute))

	assert.Equal(t, http.StatusOK, doPost(router, "10.0.0.1:1234").Code)

	w := doPost(router, "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doPost(router, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, response.CodeRateLimited, parseResponse(t, w).Code)

	// 其他地址不受影响
	assert.Equal(t, http.StatusOK, doPost(router, "10.0.0.2:1234").Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	router := rateLimitedRouter(brokenLimiter{})
	assert.Equal(t, http.StatusOK, doPost(router, "10.0.0.1:1234").Code)
}

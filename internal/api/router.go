package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depix/seem_server/config"
	"github.com/depix/seem_server/internal/api/handler"
	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/pkg/metrics"
	"github.com/depix/seem_server/internal/pkg/ratelimit"
	"github.com/depix/seem_server/internal/pkg/sl"
)

type Router struct {
	generationHandler *handler.GenerationHandler
	creditsHandler    *handler.CreditsHandler
	authHandler       *handler.AuthHandler
	billingHandler    *handler.BillingHandler
	uploadHandler     *handler.UploadHandler
	websocketHandler  *handler.WebSocketHandler
	authenticator     middleware.TokenAuthenticator
	limiter           ratelimit.Limiter
	metrics           *metrics.Metrics
	cfg               *config.Config
	log               *slog.Logger
}

func NewRouter(
	generationHandler *handler.GenerationHandler,
	creditsHandler *handler.CreditsHandler,
	authHandler *handler.AuthHandler,
	billingHandler *handler.BillingHandler,
	uploadHandler *handler.UploadHandler,
	websocketHandler *handler.WebSocketHandler,
	authenticator middleware.TokenAuthenticator,
	limiter ratelimit.Limiter,
	m *metrics.Metrics,
	cfg *config.Config,
	log *slog.Logger,
) *Router {
	return &Router{
		generationHandler: generationHandler,
		creditsHandler:    creditsHandler,
		authHandler:       authHandler,
		billingHandler:    billingHandler,
		uploadHandler:     uploadHandler,
		websocketHandler:  websocketHandler,
		authenticator:     authenticator,
		limiter:           limiter,
		metrics:           m,
		cfg:               cfg,
		log:               log,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// 限流按 ClientIP，只有配置过的代理才能通过 X-Forwarded-For 改写它
	if err := engine.SetTrustedProxies(r.cfg.Server.TrustedProxies); err != nil {
		r.log.Error("invalid server.trusted_proxies, trusting none", sl.Err(err))
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(gin.Recovery())
	if r.metrics != nil {
		engine.Use(r.metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	requireAuth := middleware.Auth(r.authenticator, r.cfg.Auth.CookieName, r.log)
	rateLimit := middleware.RateLimit(r.limiter, r.metrics, r.log)

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口
		api.GET("/generate/options", r.creditsHandler.Options)
		api.GET("/credits/estimate", r.creditsHandler.Estimate)
		api.POST("/webhooks/paddle", r.billingHandler.Webhook)

		// 生成：先限流再认证
		api.POST("/generate", rateLimit, requireAuth, r.generationHandler.Generate)

		// 认证
		auth := api.Group("/auth")
		{
			auth.POST("/signup", rateLimit, r.authHandler.Signup)
			auth.POST("/login", rateLimit, r.authHandler.Login)
			auth.POST("/logout", r.authHandler.Logout)
			auth.GET("/me", requireAuth, r.authHandler.Me)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(requireAuth)
		{
			authenticated.GET("/generations", r.generationHandler.List)
			authenticated.GET("/generations/:id", r.generationHandler.Get)
			authenticated.POST("/uploads/reference", r.uploadHandler.Reference)
			authenticated.POST("/paddle/checkout", r.billingHandler.Checkout)
			authenticated.GET("/credits/transactions", r.creditsHandler.Transactions)
		}
	}

	return engine
}

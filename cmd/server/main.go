package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	supa "github.com/supabase-community/supabase-go"

	"github.com/depix/seem_server/config"
	"github.com/depix/seem_server/internal/api"
	"github.com/depix/seem_server/internal/api/handler"
	"github.com/depix/seem_server/internal/database"
	"github.com/depix/seem_server/internal/pkg/cron"
	"github.com/depix/seem_server/internal/pkg/email"
	"github.com/depix/seem_server/internal/pkg/ideogram"
	"github.com/depix/seem_server/internal/pkg/metrics"
	"github.com/depix/seem_server/internal/pkg/paddle"
	"github.com/depix/seem_server/internal/pkg/pubsub"
	"github.com/depix/seem_server/internal/pkg/ratelimit"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/pkg/storage"
	"github.com/depix/seem_server/internal/pkg/supabase"
	"github.com/depix/seem_server/internal/pkg/ws"
	"github.com/depix/seem_server/internal/repository"
	"github.com/depix/seem_server/internal/service"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("failed to load config", sl.Err(err))
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", sl.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connected", slog.String("driver", cfg.Database.Driver))

	// 初始化 Redis（可选）
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		log.Info("redis connected")
	}

	// Supabase 客户端，认证或存储用到时才创建
	var supaClient *supa.Client
	if cfg.Auth.Provider == "supabase" || cfg.Storage.Provider == "supabase" {
		supaClient, err = supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		if err != nil {
			return err
		}
	}

	m := metrics.New()
	hub := ws.NewHub(log)
	mailer := email.NewService(&cfg.Email)

	store, err := newObjectStore(cfg, supaClient)
	if err != nil {
		return err
	}
	fetcher := storage.NewFetcher(30*time.Second, cfg.Upload.MaxSize, cfg.Upload.AllowedMimeTypes)

	// 初始化 Repository
	profileRepo := repository.NewProfileRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	// 状态推送：有 Redis 时经由 pub/sub 分发到所有实例
	var publisher service.StatusPublisher = hub
	if rdb != nil {
		publisher = pubsub.NewPublisher(rdb, cfg.Redis.StatusChannel)
		subscriber := pubsub.NewSubscriber(rdb, cfg.Redis.StatusChannel)
		go func() {
			if err := subscriber.Subscribe(ctx, nil, hub.Forward); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("status subscriber stopped", sl.Err(err))
			}
		}()
	}

	// 初始化 Service
	var provider service.IdentityProvider
	switch cfg.Auth.Provider {
	case "supabase":
		provider = service.NewSupabaseProvider(supabase.NewAuth(supaClient))
	default:
		provider = service.NewLocalProvider(credentialRepo, cfg.JWT.Secret, cfg.JWT.ExpireHours)
	}

	generator := ideogram.NewClient(cfg.Ideogram.APIKey, cfg.Ideogram.Timeout,
		ideogram.WithBaseURL(cfg.Ideogram.BaseURL),
		ideogram.WithRateLimit(cfg.Ideogram.RequestsPerSecond),
	)

	opts := []service.GenerationOption{
		service.WithFetcher(fetcher),
		service.WithPublisher(publisher),
		service.WithMetrics(m),
	}
	if store != nil {
		opts = append(opts, service.WithObjectStore(store, cfg.Storage.Mirror))
	}

	creditService := service.NewCreditService(profileRepo, creditRepo, log)
	generationService := service.NewGenerationService(db, generationRepo, creditService, generator, log, opts...)
	authService := service.NewAuthService(db, provider, profileRepo, creditService, mailer, cfg.Credits.SignupBonus, log)
	paddleClient, err := paddle.NewClient(cfg.Paddle.APIKey, cfg.Paddle.BaseURL)
	if err != nil {
		return err
	}
	billingService := service.NewBillingService(db, cfg,
		paddleClient,
		paddle.NewVerifier(cfg.Paddle.WebhookSecret, cfg.Paddle.WebhookTolerance),
		profileRepo, eventRepo, creditService, mailer, m, log)
	uploadService := service.NewUploadService(store, cfg.Upload, log)

	// 限流
	var limiter ratelimit.Limiter
	var pruner cron.Pruner
	if cfg.RateLimit.Backend == "redis" {
		limiter = ratelimit.NewRedisLimiter(rdb, "ratelimit", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	} else {
		memory := ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
		limiter = memory
		pruner = memory
	}

	reaper := cron.NewService(generationService, pruner, cfg.Reaper.Interval, cfg.Reaper.StaleAfter, log)
	reaper.Start()
	defer reaper.Stop()

	// 初始化 Handler
	cookie := handler.SessionCookie{
		Name:   cfg.Auth.CookieName,
		MaxAge: cfg.JWT.ExpireHours * 3600,
		Secure: cfg.Server.Mode == "release",
	}
	router := api.NewRouter(
		handler.NewGenerationHandler(generationService, uploadService, log),
		handler.NewCreditsHandler(creditService, log),
		handler.NewAuthHandler(authService, cookie, log),
		handler.NewBillingHandler(billingService, log),
		handler.NewUploadHandler(uploadService, log),
		handler.NewWebSocketHandler(hub, authService, cfg.Auth.CookieName, cfg.CORS.AllowedOrigins, log),
		authService,
		limiter,
		m,
		cfg,
		log,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// 生成请求可能持续到上游超时
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ideogram.Timeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newObjectStore(cfg *config.Config, client *supa.Client) (storage.ObjectStore, error) {
	switch cfg.Storage.Provider {
	case "oss":
		store, err := storage.NewOSSStore(&cfg.Storage.OSS)
		if err != nil {
			return nil, fmt.Errorf("create oss store: %w", err)
		}
		return store, nil
	case "supabase":
		return storage.NewSupabaseStore(client.Storage, cfg.Storage.Bucket), nil
	default:
		return nil, nil
	}
}

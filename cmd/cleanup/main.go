// cleanup 单次执行超时生成记录的清理，适合放在外部 cron 中运行
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/depix/seem_server/config"
	"github.com/depix/seem_server/internal/database"
	"github.com/depix/seem_server/internal/pkg/cron"
	"github.com/depix/seem_server/internal/pkg/sl"
	"github.com/depix/seem_server/internal/repository"
	"github.com/depix/seem_server/internal/service"
)

var (
	staleAfter = flag.Duration("stale-after", 0, "Fail generations stuck longer than this (defaults to reaper.stale_after)")
	timeout    = flag.Duration("timeout", time.Minute, "Overall timeout for the sweep")
)

func main() {
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
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

	db, err := database.NewDB(&cfg.Database, false)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	after := cfg.Reaper.StaleAfter
	if *staleAfter > 0 {
		after = *staleAfter
	}

	// 只需要生成记录相关的依赖，上游客户端不会被调用
	profileRepo := repository.NewProfileRepository(db)
	creditService := service.NewCreditService(profileRepo, repository.NewCreditRepository(db), log)
	generationService := service.NewGenerationService(db, repository.NewGenerationRepository(db), creditService, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reaper := cron.NewService(generationService, nil, 0, after, log)
	failed, _ := reaper.RunOnce(ctx)
	log.Info("cleanup finished", slog.Int("stale_generations", failed), slog.Duration("stale_after", after))
}

package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/depix/seem_server/internal/pkg/sl"
)

// 每轮最多处理的超时记录数
const staleBatchSize = 100

// StaleFailer 把长时间未完成的生成记录标记为失败
type StaleFailer interface {
	FailStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// Pruner 清理过期的内存限流窗口
type Pruner interface {
	Prune() int
}

type Service struct {
	generations StaleFailer
	pruner      Pruner
	interval    time.Duration
	staleAfter  time.Duration
	log         *slog.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewService pruner 可为 nil（使用 Redis 限流时）
func NewService(generations StaleFailer, pruner Pruner, interval, staleAfter time.Duration, log *slog.Logger) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		generations: generations,
		pruner:      pruner,
		interval:    interval,
		staleAfter:  staleAfter,
		log:         log,
		stopChan:    make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info("reaper started",
		slog.Duration("interval", s.interval),
		slog.Duration("stale_after", s.staleAfter))
}

// Stop 停止定时任务并等待当前一轮结束，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.log.Info("reaper stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce 立即执行一轮清理，返回失败的生成记录数和清理的限流窗口数
func (s *Service) RunOnce(ctx context.Context) (failed, pruned int) {
	if s.generations != nil && s.staleAfter > 0 {
		n, err := s.generations.FailStale(ctx, s.staleAfter, staleBatchSize)
		if err != nil {
			s.log.Error("failed to reap stale generations", sl.Err(err))
		}
		failed = n
	}
	if s.pruner != nil {
		pruned = s.pruner.Prune()
	}

	if failed > 0 || pruned > 0 {
		s.log.Info("reaper summary", slog.Int("stale_generations", failed), slog.Int("pruned_windows", pruned))
	}
	return failed, pruned
}

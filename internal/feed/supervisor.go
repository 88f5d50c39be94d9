package feed

import (
	"context"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/pkg/goplus"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// Source 受监督的数据源。Stream 连接上游并阻塞到连接断开
// 或 ctx 取消，断开不在源内重试，由监督循环统一处理。
type Source interface {
	Name() string
	Healthy() bool
	Stream(ctx context.Context) error
}

// Supervisor 为每个源跑一条监督循环：
// 连接 -> 读到断开 -> 固定间隔休眠 -> 重来，直到 ctx 取消
type Supervisor struct {
	sources  []Source
	interval time.Duration
	wg       *goplus.WaitGroup
	cancel   context.CancelFunc
}

// NewSupervisor 创建监督器
func NewSupervisor(interval time.Duration, sources ...Source) *Supervisor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Supervisor{
		sources:  sources,
		interval: interval,
		wg:       goplus.NewWaitGroup(),
	}
}

// Start 启动全部监督循环
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, src := range s.sources {
		src := src
		s.wg.Go(func() {
			s.run(ctx, src)
		})
	}
}

// Stop 取消全部循环并等待退出
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Supervisor) run(ctx context.Context, src Source) {
	metrics := monitor.GetMetrics()
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			metrics.IncFeedReconnects(src.Name())
		}
		attempt++

		err := src.Stream(ctx)
		metrics.SetFeedConnected(src.Name(), false)

		if ctx.Err() != nil {
			return
		}
		logger.Warn().
			Err(err).
			Str("feed", src.Name()).
			Dur("retry_in", s.interval).
			Msg("feed stream ended, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

// ConnectedCount 当前健康的源数量（健康检查用）
func (s *Supervisor) ConnectedCount() int {
	n := 0
	for _, src := range s.sources {
		if src.Healthy() {
			n++
		}
	}
	return n
}

// FeedCount 源总数
func (s *Supervisor) FeedCount() int {
	return len(s.sources)
}

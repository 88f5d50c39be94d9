package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

const maxPollBody = 1024 * 1024 // 响应体上限 1MB

// PollFeed 基于 HTTP 轮询的数据源，单次轮询失败只记日志，
// 下个周期继续
type PollFeed struct {
	name     string
	url      string
	interval time.Duration
	client   *http.Client
	handler  func([]byte) error
	healthy  atomic.Bool
}

// NewPollFeed 创建轮询数据源
func NewPollFeed(name, url string, interval time.Duration, handler func([]byte) error) *PollFeed {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PollFeed{
		name:     name,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 15 * time.Second},
		handler:  handler,
	}
}

func (f *PollFeed) Name() string { return f.name }

func (f *PollFeed) Healthy() bool { return f.healthy.Load() }

// Stream 周期轮询直到 ctx 取消，启动时立即轮询一次
func (f *PollFeed) Stream(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	defer f.healthy.Store(false)

	f.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.pollOnce(ctx)
		}
	}
}

func (f *PollFeed) pollOnce(ctx context.Context) {
	metrics := monitor.GetMetrics()

	body, err := f.fetch(ctx)
	if err != nil {
		f.healthy.Store(false)
		metrics.SetFeedConnected(f.name, false)
		logger.Warn().Err(err).Str("feed", f.name).Msg("poll failed")
		return
	}

	f.healthy.Store(true)
	metrics.SetFeedConnected(f.name, true)

	if err = f.handler(body); err != nil {
		metrics.IncFeedParseErrors(f.name)
		logger.Warn().Err(err).Str("feed", f.name).Msg("skip unparsable poll response")
	}
}

func (f *PollFeed) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
}

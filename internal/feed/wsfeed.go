package feed

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// WSFeed 基于长连接的流式数据源，每次 Stream 建一条新连接
type WSFeed struct {
	name      string
	url       string
	handler   func([]byte) error
	connected atomic.Bool
}

// NewWSFeed 创建流式数据源，handler 收到的是原始消息字节
func NewWSFeed(name, url string, handler func([]byte) error) *WSFeed {
	return &WSFeed{name: name, url: url, handler: handler}
}

func (f *WSFeed) Name() string { return f.name }

func (f *WSFeed) Healthy() bool { return f.connected.Load() }

// Stream 连接上游并阻塞到断开或 ctx 取消
func (f *WSFeed) Stream(ctx context.Context) error {
	client := NewClient(f.url)
	client.SetMessageHandler(f.handle)

	disconnected := make(chan struct{})
	client.SetDisconnectCallback(func() {
		close(disconnected)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	f.connected.Store(true)
	monitor.GetMetrics().SetFeedConnected(f.name, true)
	logger.Info().Str("feed", f.name).Str("url", f.url).Msg("feed connected")

	defer f.connected.Store(false)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-disconnected:
		return errors.New("stream closed by upstream")
	}
}

// handle 单条消息解析失败只跳过，绝不断流
func (f *WSFeed) handle(msg []byte) error {
	if err := f.handler(msg); err != nil {
		monitor.GetMetrics().IncFeedParseErrors(f.name)
		logger.Warn().Err(err).Str("feed", f.name).Msg("skip unparsable feed message")
	}
	return nil
}

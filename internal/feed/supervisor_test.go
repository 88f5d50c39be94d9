package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeSource 每次 Stream 立即断开，记录调用次数
type fakeSource struct {
	name    string
	streams atomic.Int32
	healthy atomic.Bool
}

func (s *fakeSource) Name() string  { return s.name }
func (s *fakeSource) Healthy() bool { return s.healthy.Load() }

func (s *fakeSource) Stream(ctx context.Context) error {
	s.streams.Add(1)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("stream closed")
}

func TestSupervisor_ReconnectLoop(t *testing.T) {
	src := &fakeSource{name: "fake"}
	s := NewSupervisor(10*time.Millisecond, src)

	s.Start(context.Background())

	// 固定间隔重连，断开后循环继续
	assert.Eventually(t, func() bool {
		return src.streams.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestSupervisor_StopCancelsLoop(t *testing.T) {
	src := &fakeSource{name: "fake"}
	s := NewSupervisor(10*time.Millisecond, src)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return src.streams.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	after := src.streams.Load()

	// 停止后不再重连
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, src.streams.Load())
}

func TestSupervisor_ConnectedCount(t *testing.T) {
	up := &fakeSource{name: "up"}
	up.healthy.Store(true)
	down := &fakeSource{name: "down"}

	s := NewSupervisor(time.Second, up, down)
	assert.Equal(t, 2, s.FeedCount())
	assert.Equal(t, 1, s.ConnectedCount())
}

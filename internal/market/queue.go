package market

import (
	"sync"

	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// EventHandler 事件处理器接口
type EventHandler interface {
	HandleEvent(ev Event) error
}

// EventQueue 异步事件队列，上游 feed 入队，worker 串行消费
type EventQueue struct {
	queue    chan Event
	wg       sync.WaitGroup
	handlers []EventHandler
	done     chan struct{}
}

// NewEventQueue 创建事件队列
func NewEventQueue(size int, handlers ...EventHandler) *EventQueue {
	if size <= 0 {
		size = 10000
	}
	return &EventQueue{
		queue:    make(chan Event, size),
		handlers: handlers,
		done:     make(chan struct{}),
	}
}

// AddHandler 追加处理器（须在 Start 前调用）
func (q *EventQueue) AddHandler(h EventHandler) {
	q.handlers = append(q.handlers, h)
}

// Start 启动工作协程
func (q *EventQueue) Start() {
	q.wg.Add(1)
	go q.worker()
}

func (q *EventQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case ev := <-q.queue:
			q.handle(ev)
		case <-q.done:
			return
		}
	}
}

func (q *EventQueue) handle(ev Event) {
	// 处理器失败互相隔离
	for _, h := range q.handlers {
		if err := h.HandleEvent(ev); err != nil {
			logger.Error().Err(err).
				Str("topic", ev.Topic()).
				Str("symbol", ev.Symbol()).
				Msg("handle event failed")
		}
	}
}

// Enqueue 发送事件（带背压策略）
func (q *EventQueue) Enqueue(ev Event) {
	select {
	case q.queue <- ev:
	default:
		// 队列满，启用同步降级策略
		logger.Warn().
			Str("topic", ev.Topic()).
			Int("queue_size", len(q.queue)).
			Msg("event queue full, falling back to sync processing")

		q.handle(ev)
	}
}

// Stop 停止队列
func (q *EventQueue) Stop() {
	close(q.done)
	q.wg.Wait()
}

// Size 返回当前队列大小
func (q *EventQueue) Size() int {
	return len(q.queue)
}

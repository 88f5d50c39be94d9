package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	// 告警管道
	alertsEvaluated   *prometheus.CounterVec
	alertsTriggered   *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	dispatchDuration  prometheus.Histogram
	// 实时层
	realtimeClients    prometheus.Gauge
	subscriptionsTotal prometheus.Gauge
	broadcastsTotal    *prometheus.CounterVec
	// 上游数据源
	feedConnected   *prometheus.GaugeVec
	feedReconnects  *prometheus.CounterVec
	feedParseErrors *prometheus.CounterVec
	// 事件队列
	eventQueueSize      prometheus.Gauge
	eventQueueFullTotal prometheus.Counter
	// 其他
	natsConnected       prometheus.Gauge
	historyDeletedTotal prometheus.Counter
}

// NewMetrics 创建指标收集器
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		alertsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_evaluated_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"type", "outcome"}, // triggered, rejected, condition_unmet
		),
		alertsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_triggered_total",
				Help:      "Total number of fired alerts",
			},
			[]string{"type", "severity"},
		),
		notificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notification delivery attempts",
			},
			[]string{"channel", "status"}, // sent, failed
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "告警投递耗时分布（所有渠道 settle）",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		realtimeClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realtime_clients",
				Help:      "Current number of connected realtime clients",
			},
		),
		subscriptionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realtime_subscriptions",
				Help:      "Current number of topic subscriptions",
			},
		),
		broadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcasts_total",
				Help:      "Total number of messages broadcast per topic",
			},
			[]string{"topic"},
		),
		feedConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feed_connected",
				Help:      "Upstream feed connection status (1=connected, 0=disconnected)",
			},
			[]string{"feed"},
		),
		feedReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_reconnects_total",
				Help:      "Total number of upstream feed reconnect attempts",
			},
			[]string{"feed"},
		),
		feedParseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_parse_errors_total",
				Help:      "上游消息解析失败总数（跳过不断流）",
			},
			[]string{"feed"},
		),
		eventQueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_size",
				Help:      "事件队列当前大小",
			},
		),
		eventQueueFullTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_queue_full_total",
				Help:      "事件队列满事件总数",
			},
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		historyDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_deleted_total",
				Help:      "Total number of alert history rows removed by retention",
			},
		),
	}

	prometheus.MustRegister(
		m.alertsEvaluated,
		m.alertsTriggered,
		m.notificationsSent,
		m.dispatchDuration,
		m.realtimeClients,
		m.subscriptionsTotal,
		m.broadcastsTotal,
		m.feedConnected,
		m.feedReconnects,
		m.feedParseErrors,
		m.eventQueueSize,
		m.eventQueueFullTotal,
		m.natsConnected,
		m.historyDeletedTotal,
	)

	return m
}

// IncAlertsEvaluated 增加求值计数
func (m *Metrics) IncAlertsEvaluated(alertType, outcome string) {
	m.alertsEvaluated.WithLabelValues(alertType, outcome).Inc()
}

// IncAlertsTriggered 增加触发计数
func (m *Metrics) IncAlertsTriggered(alertType, severity string) {
	m.alertsTriggered.WithLabelValues(alertType, severity).Inc()
}

// IncNotificationsSent 增加投递计数
func (m *Metrics) IncNotificationsSent(channel, status string) {
	m.notificationsSent.WithLabelValues(channel, status).Inc()
}

// ObserveDispatchDuration 观察投递耗时
func (m *Metrics) ObserveDispatchDuration(seconds float64) {
	m.dispatchDuration.Observe(seconds)
}

// SetRealtimeClients 设置在线客户端数
func (m *Metrics) SetRealtimeClients(count int) {
	m.realtimeClients.Set(float64(count))
}

// SetSubscriptions 设置订阅总数
func (m *Metrics) SetSubscriptions(count int) {
	m.subscriptionsTotal.Set(float64(count))
}

// IncBroadcasts 增加广播计数
func (m *Metrics) IncBroadcasts(topic string) {
	m.broadcastsTotal.WithLabelValues(topic).Inc()
}

// SetFeedConnected 设置数据源连接状态
func (m *Metrics) SetFeedConnected(feed string, connected bool) {
	if connected {
		m.feedConnected.WithLabelValues(feed).Set(1)
	} else {
		m.feedConnected.WithLabelValues(feed).Set(0)
	}
}

// IncFeedReconnects 增加重连计数
func (m *Metrics) IncFeedReconnects(feed string) {
	m.feedReconnects.WithLabelValues(feed).Inc()
}

// IncFeedParseErrors 增加解析失败计数
func (m *Metrics) IncFeedParseErrors(feed string) {
	m.feedParseErrors.WithLabelValues(feed).Inc()
}

// SetEventQueueSize 设置事件队列大小
func (m *Metrics) SetEventQueueSize(size int) {
	m.eventQueueSize.Set(float64(size))
}

// IncEventQueueFull 增加队列满事件计数
func (m *Metrics) IncEventQueueFull() {
	m.eventQueueFullTotal.Inc()
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

// AddHistoryDeleted 增加清理记录计数
func (m *Metrics) AddHistoryDeleted(count int64) {
	m.historyDeletedTotal.Add(float64(count))
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("market_dashboard")
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}

package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-market-dashboard/pkg/goplus"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// RegistryRef 实时连接注册表引用接口
type RegistryRef interface {
	ClientCount() int
	SubscriptionCount() int
}

// FeedsRef 数据源监督器引用接口
type FeedsRef interface {
	ConnectedCount() int
	FeedCount() int
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// HealthServer HTTP 健康检查和指标处理器集合，
// 挂载到实时服务共用的 mux 上
type HealthServer struct {
	registry     RegistryRef
	feeds        FeedsRef
	publisher    PublisherRef
	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// NewHealthServer 创建健康检查服务
func NewHealthServer(registry RegistryRef, feeds FeedsRef, publisher PublisherRef) *HealthServer {
	return &HealthServer{
		registry:     registry,
		feeds:        feeds,
		publisher:    publisher,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

// Register 注册健康检查与指标端点
func (h *HealthServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)
	mux.HandleFunc("/status", h.statusHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Stop 标记服务下线
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()
	return nil
}

// healthHandler 健康检查处理器
func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// readyHandler 就绪检查处理器
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// liveHandler 存活检查处理器
func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusHandler 服务状态处理器
func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// isReady 检查服务是否就绪
// 数据源全断时仍然就绪：客户端只是收不到增量，REST 快照可用
func (h *HealthServer) isReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

// getHealthStatus 获取健康状态
func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	natsConnected := false
	if h.publisher != nil {
		natsConnected = h.publisher.IsConnected()
	}

	status := HealthStatus{
		Healthy:      healthy,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		NATS: NATSStatus{
			Connected: natsConnected,
		},
	}

	if h.feeds != nil {
		status.Feeds = FeedStatus{
			Connected: h.feeds.ConnectedCount(),
			Total:     h.feeds.FeedCount(),
		}
	}
	if h.registry != nil {
		status.Realtime = RealtimeStatus{
			Clients:       h.registry.ClientCount(),
			Subscriptions: h.registry.SubscriptionCount(),
		}
	}

	return status
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool           `json:"healthy"`
	HealthySince string         `json:"healthy_since"`
	Uptime       string         `json:"uptime"`
	Feeds        FeedStatus     `json:"feeds"`
	NATS         NATSStatus     `json:"nats"`
	Realtime     RealtimeStatus `json:"realtime"`
}

// FeedStatus 上游数据源状态
type FeedStatus struct {
	Connected int `json:"connected"`
	Total     int `json:"total"`
}

// NATSStatus NATS连接状态
type NATSStatus struct {
	Connected bool `json:"connected"`
}

// RealtimeStatus 实时层状态
type RealtimeStatus struct {
	Clients       int `json:"clients"`
	Subscriptions int `json:"subscriptions"`
}

// Serve 在独立地址上启动健康服务（实时服务不共用端口时使用）
func (h *HealthServer) Serve(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	h.Register(mux)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	goplus.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", addr).Msg("health server started")
	return server
}

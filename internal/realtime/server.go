package realtime

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/pkg/concurrent"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// Server 实时推送服务：/realtime 升级入口、会话生命周期与入站事件分发
type Server struct {
	registry *Registry
	cache    *cache.MarketCache
	upgrader websocket.Upgrader

	sessions concurrent.Map[uint64, *Session]
	nextID   atomic.Uint64

	writeWait  time.Duration
	pongWait   time.Duration
	sendBuffer int
}

// Options 服务参数
type Options struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	SendBuffer int
}

// NewServer 创建实时推送服务
func NewServer(registry *Registry, marketCache *cache.MarketCache, opts Options) *Server {
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	return &Server{
		registry: registry,
		cache:    marketCache,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 看板前端跨域访问
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeWait:  opts.WriteWait,
		pongWait:   opts.PongWait,
		sendBuffer: opts.SendBuffer,
	}
}

// Register 挂载升级入口
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/realtime", s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := s.nextID.Add(1)
	session := newSession(id, conn, s, s.sendBuffer)
	s.sessions.Store(id, session)
	s.registry.Register(id)
	monitor.GetMetrics().SetRealtimeClients(s.registry.ClientCount())

	logger.Info().Uint64("conn_id", id).Str("remote", r.RemoteAddr).Msg("client connected")

	// 连接确认 + 缓存快照，快照同步取自缓存，不阻塞等待上游
	s.sendMessage(session, ServerMessage{Event: EvtConnectionStatus, Data: map[string]any{
		"connected": true,
		"conn_id":   id,
	}})
	s.sendMessage(session, ServerMessage{Event: EvtMarketSnapshot, Data: s.cache.Snapshot()})

	go session.writePump()
	go session.readPump()
}

// SendTo 实现广播路由器的 Sender
func (s *Server) SendTo(connID uint64, data []byte) bool {
	session, ok := s.sessions.Load(connID)
	if !ok {
		return false
	}
	return session.enqueue(data)
}

// unregister 断开清理：两索引登记与会话表一并移除
func (s *Server) unregister(session *Session) {
	s.sessions.Delete(session.id)
	s.registry.Remove(session.id)

	metrics := monitor.GetMetrics()
	metrics.SetRealtimeClients(s.registry.ClientCount())
	metrics.SetSubscriptions(s.registry.SubscriptionCount())

	logger.Info().Uint64("conn_id", session.id).Msg("client disconnected")
}

// subscribeCategories 订阅事件名 -> 类别
var subscribeCategories = map[string]string{
	EvtSubscribePrices:       CategoryPrices,
	EvtSubscribeFunding:      CategoryFunding,
	EvtSubscribeLiquidations: CategoryLiquidations,
	EvtSubscribeSentiment:    CategorySentiment,
	EvtSubscribeStablecoins:  CategoryStablecoins,
	EvtSubscribeCorrelations: CategoryCorrelations,
}

// unsubscribeCategories 退订 type 参数 -> 类别
var unsubscribeCategories = map[string]string{
	CategoryPrices:       CategoryPrices,
	CategoryFunding:      CategoryFunding,
	CategoryLiquidations: CategoryLiquidations,
	CategorySentiment:    CategorySentiment,
	CategoryStablecoins:  CategoryStablecoins,
	CategoryCorrelations: CategoryCorrelations,
}

// handleMessage 分发客户端入站事件，畸形消息只记日志不断连
func (s *Server) handleMessage(session *Session, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Debug().Err(err).Uint64("conn_id", session.id).Msg("malformed client message")
		return
	}

	if category, ok := subscribeCategories[msg.Event]; ok {
		s.handleSubscribe(session, category, msg.Data)
		return
	}

	switch msg.Event {
	case EvtUnsubscribe:
		s.handleUnsubscribe(session, msg.Data)
	case EvtPing:
		s.sendMessage(session, ServerMessage{Event: EvtPong})
	default:
		logger.Debug().Str("event", msg.Event).Uint64("conn_id", session.id).Msg("unknown client event")
	}
}

func (s *Server) handleSubscribe(session *Session, category string, data json.RawMessage) {
	var sub SubscribeData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sub); err != nil {
			logger.Debug().Err(err).Uint64("conn_id", session.id).Msg("malformed subscribe data")
			return
		}
	}

	keys, accepted := resolveTopics(category, sub.Symbols)
	s.registry.Subscribe(session.id, keys)
	monitor.GetMetrics().SetSubscriptions(s.registry.SubscriptionCount())

	// 回执带过滤后的集合，客户端可据此发现被静默拒绝的符号
	s.sendMessage(session, ServerMessage{Event: EvtSubscribeConfirmed, Data: map[string]any{
		"type":    category,
		"symbols": accepted,
		"topics":  keys,
	}})
}

func (s *Server) handleUnsubscribe(session *Session, data json.RawMessage) {
	var unsub UnsubscribeData
	if err := json.Unmarshal(data, &unsub); err != nil {
		logger.Debug().Err(err).Uint64("conn_id", session.id).Msg("malformed unsubscribe data")
		return
	}

	category, ok := unsubscribeCategories[unsub.Type]
	if !ok {
		logger.Debug().Str("type", unsub.Type).Uint64("conn_id", session.id).Msg("unknown unsubscribe type")
		return
	}

	keys, accepted := resolveTopics(category, unsub.Assets)
	s.registry.Unsubscribe(session.id, keys)
	monitor.GetMetrics().SetSubscriptions(s.registry.SubscriptionCount())

	s.sendMessage(session, ServerMessage{Event: EvtUnsubscribeConfirmed, Data: map[string]any{
		"type":    category,
		"symbols": accepted,
		"topics":  keys,
	}})
}

func (s *Server) sendMessage(session *Session, msg ServerMessage) {
	data, err := msg.Encode()
	if err != nil {
		logger.Error().Err(err).Str("event", msg.Event).Msg("encode server message failed")
		return
	}
	session.enqueue(data)
}

// ClientCount 当前连接数（健康检查用）
func (s *Server) ClientCount() int {
	return s.registry.ClientCount()
}

// Close 关闭全部会话
func (s *Server) Close() {
	s.sessions.Range(func(_ uint64, session *Session) bool {
		session.close()
		return true
	})
}

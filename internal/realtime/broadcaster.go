package realtime

import (
	"github.com/panjf2000/ants/v2"

	"github.com/utrading/utrading-market-dashboard/internal/market"
	"github.com/utrading/utrading-market-dashboard/internal/models"
	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// Sender 向单个连接投递已编码消息，连接不存在或缓冲溢出返回 false
type Sender interface {
	SendTo(connID uint64, data []byte) bool
}

// Broadcaster 广播路由器：把规范化市场事件同时发到类别宽房间
// 和符号房间，投递走协程池，池满降级为同步执行
type Broadcaster struct {
	registry *Registry
	sender   Sender
	pool     *ants.Pool

	largeLiqValue float64
}

// NewBroadcaster 创建广播路由器
func NewBroadcaster(registry *Registry, sender Sender, poolSize int,
	largeLiqValue float64) *Broadcaster {
	if poolSize <= 0 {
		poolSize = 1000
	}
	pool, _ := ants.NewPool(poolSize)
	return &Broadcaster{
		registry:      registry,
		sender:        sender,
		pool:          pool,
		largeLiqValue: largeLiqValue,
	}
}

// HandleEvent 实现 market 事件处理器
func (b *Broadcaster) HandleEvent(ev market.Event) error {
	switch e := ev.(type) {
	case market.PriceTick:
		b.broadcast(ServerMessage{Event: EvtPriceUpdate, Data: pricePayload(e)},
			e.Topic(), CategoryPrices, topicKey(CategoryPrices, e.Asset))
	case market.FundingUpdate:
		b.broadcast(ServerMessage{Event: EvtFundingUpdate, Data: fundingPayload(e)},
			e.Topic(), CategoryFunding, topicKey(CategoryFunding, e.Asset))
	case market.LiquidationEvent:
		b.handleLiquidation(e)
	case market.SentimentUpdate:
		b.broadcast(ServerMessage{Event: EvtSentimentUpdate, Data: sentimentPayload(e)},
			e.Topic(), CategorySentiment)
	case market.StablecoinUpdate:
		b.broadcast(ServerMessage{Event: EvtStablecoinUpdate, Data: stablecoinPayload(e)},
			e.Topic(), CategoryStablecoins, topicKey(CategoryStablecoins, e.Asset))
	case market.CorrelationUpdate:
		b.broadcast(ServerMessage{Event: EvtCorrelationUpdate, Data: correlationPayload(e)},
			e.Topic(), CategoryCorrelations)
	}
	return nil
}

// handleLiquidation 清算广播，超过大额阈值时派生升级事件
func (b *Broadcaster) handleLiquidation(e market.LiquidationEvent) {
	severity := models.SeverityMedium
	large := b.largeLiqValue > 0 && e.TotalValue > b.largeLiqValue
	if large {
		severity = models.SeverityHigh
	}

	payload := liquidationPayload(e, severity)
	b.broadcast(ServerMessage{Event: EvtLiquidationAlert, Data: payload}, e.Topic(), CategoryLiquidations)

	if !large {
		return
	}
	// 每条超阈值清算都派生升级事件，不做窗口去重
	b.broadcast(ServerMessage{Event: EvtLargeLiquidation, Data: payload}, e.Topic(), CategoryLiquidations)
}

// broadcast 编码一次，向所有房间成员投递
func (b *Broadcaster) broadcast(msg ServerMessage, metricTopic string, keys ...string) {
	data, err := msg.Encode()
	if err != nil {
		logger.Error().Err(err).Str("event", msg.Event).Msg("encode broadcast message failed")
		return
	}

	members := b.registry.Members(keys...)
	if len(members) == 0 {
		return
	}
	monitor.GetMetrics().IncBroadcasts(metricTopic)

	for _, connID := range members {
		connID := connID
		err := b.pool.Submit(func() {
			b.sender.SendTo(connID, data)
		})
		if err != nil {
			// 池满降级为同步投递，只阻塞事件队列 worker，不会死锁
			b.sender.SendTo(connID, data)
		}
	}
}

// Close 释放协程池
func (b *Broadcaster) Close() {
	if b.pool != nil {
		b.pool.Release()
	}
}

type priceData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	Timestamp int64   `json:"timestamp"`
}

func pricePayload(e market.PriceTick) priceData {
	return priceData{
		Symbol:    e.Asset,
		Price:     e.Price,
		Change24h: e.Change24h,
		Volume24h: e.Volume24h,
		Timestamp: e.Timestamp.UnixMilli(),
	}
}

type fundingData struct {
	Symbol       string  `json:"symbol"`
	Rate         float64 `json:"rate"`
	MarkPrice    float64 `json:"mark_price"`
	OpenInterest float64 `json:"open_interest,omitempty"`
	Timestamp    int64   `json:"timestamp"`
}

func fundingPayload(e market.FundingUpdate) fundingData {
	return fundingData{
		Symbol:       e.Asset,
		Rate:         e.Rate,
		MarkPrice:    e.MarkPrice,
		OpenInterest: e.OpenInterest,
		Timestamp:    e.Timestamp.UnixMilli(),
	}
}

type liquidationData struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	TotalValue float64 `json:"total_value"`
	Exchange   string  `json:"exchange,omitempty"`
	Severity   string  `json:"severity"`
	Timestamp  int64   `json:"timestamp"`
}

func liquidationPayload(e market.LiquidationEvent, severity string) liquidationData {
	return liquidationData{
		Symbol:     e.Asset,
		Side:       e.Side,
		Price:      e.Price,
		Quantity:   e.Quantity,
		TotalValue: e.TotalValue,
		Exchange:   e.Exchange,
		Severity:   severity,
		Timestamp:  e.Timestamp.UnixMilli(),
	}
}

type sentimentData struct {
	Value          float64 `json:"value"`
	Classification string  `json:"classification"`
	Timestamp      int64   `json:"timestamp"`
}

func sentimentPayload(e market.SentimentUpdate) sentimentData {
	return sentimentData{
		Value:          e.Value,
		Classification: e.Classification,
		Timestamp:      e.Timestamp.UnixMilli(),
	}
}

type stablecoinData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap,omitempty"`
	PegDev    float64 `json:"peg_deviation"`
	Timestamp int64   `json:"timestamp"`
}

func stablecoinPayload(e market.StablecoinUpdate) stablecoinData {
	return stablecoinData{
		Symbol:    e.Asset,
		Price:     e.Price,
		MarketCap: e.MarketCap,
		PegDev:    e.PegDev,
		Timestamp: e.Timestamp.UnixMilli(),
	}
}

type correlationData struct {
	Pair      string  `json:"pair"`
	Value     float64 `json:"value"`
	Window    string  `json:"window,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

func correlationPayload(e market.CorrelationUpdate) correlationData {
	return correlationData{
		Pair:      e.Pair,
		Value:     e.Value,
		Window:    e.Window,
		Timestamp: e.Timestamp.UnixMilli(),
	}
}

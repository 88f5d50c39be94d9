package market

import "time"

// 广播主题类别
const (
	TopicPrices       = "prices"
	TopicFunding      = "funding"
	TopicLiquidations = "liquidations"
	TopicSentiment    = "sentiment"
	TopicStablecoins  = "stablecoins"
	TopicCorrelations = "correlations"
)

// Event 上游数据源产出的规范化市场事件
type Event interface {
	Topic() string  // 广播类别
	Symbol() string // 资产符号，无资产维度的事件返回空
}

// PriceTick 现货价格更新
type PriceTick struct {
	Asset     string
	Price     float64
	Change24h float64 // 24h 涨跌幅（百分比）
	Volume24h float64
	Timestamp time.Time
}

func (e PriceTick) Topic() string  { return TopicPrices }
func (e PriceTick) Symbol() string { return e.Asset }

// FundingUpdate 合约资金费率更新
type FundingUpdate struct {
	Asset        string
	Rate         float64 // 当期费率
	MarkPrice    float64
	OpenInterest float64
	Timestamp    time.Time
}

func (e FundingUpdate) Topic() string  { return TopicFunding }
func (e FundingUpdate) Symbol() string { return e.Asset }

// LiquidationEvent 清算事件
type LiquidationEvent struct {
	Asset      string
	Side       string // LONG/SHORT 被清算方向
	Price      float64
	Quantity   float64
	TotalValue float64 // 计价货币价值
	Exchange   string
	Timestamp  time.Time
}

func (e LiquidationEvent) Topic() string  { return TopicLiquidations }
func (e LiquidationEvent) Symbol() string { return e.Asset }

// SentimentUpdate 恐惧贪婪指数更新
type SentimentUpdate struct {
	Value          float64 // 0-100
	Classification string  // Extreme Fear ... Extreme Greed
	Timestamp      time.Time
}

func (e SentimentUpdate) Topic() string  { return TopicSentiment }
func (e SentimentUpdate) Symbol() string { return "" }

// StablecoinUpdate 稳定币状态更新
type StablecoinUpdate struct {
	Asset     string // USDT/USDC/...
	Price     float64
	MarketCap float64
	PegDev    float64 // 偏离 1.0 的幅度
	Timestamp time.Time
}

func (e StablecoinUpdate) Topic() string  { return TopicStablecoins }
func (e StablecoinUpdate) Symbol() string { return e.Asset }

// CorrelationUpdate 跨资产相关性更新
type CorrelationUpdate struct {
	Pair      string // 如 "BTC-SPX"
	Value     float64
	Window    string
	Timestamp time.Time
}

func (e CorrelationUpdate) Topic() string  { return TopicCorrelations }
func (e CorrelationUpdate) Symbol() string { return e.Pair }

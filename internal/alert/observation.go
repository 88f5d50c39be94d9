package alert

import (
	"encoding/json"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// Observation 一次规则求值的市场观测输入，
// 由引擎从规范化事件构造，具体字段随事件类型而定
type Observation struct {
	Symbol           string
	Price            float64
	ChangePct        float64 // 24h 涨跌幅（百分比）
	Volume           float64
	VolumePct        float64 // 成交量变化幅度（百分比）
	FundingRate      float64
	LiquidationValue float64
	Sentiment        float64 // 恐惧贪婪指数 0-100
	Metric           float64 // etf_flow/cross_asset/indicator 的通用观测值
	Indicator        string
	Raw              string // 原始事件快照，仅用于审计
	ObservedAt       time.Time
}

// observationFromEvent 从规范化事件构造观测
func observationFromEvent(ev market.Event) Observation {
	obs := Observation{Symbol: ev.Symbol(), ObservedAt: time.Now()}
	if raw, err := json.Marshal(ev); err == nil {
		obs.Raw = string(raw)
	}

	switch e := ev.(type) {
	case market.PriceTick:
		obs.Price = e.Price
		obs.ChangePct = e.Change24h
		obs.Volume = e.Volume24h
		obs.ObservedAt = e.Timestamp
	case market.FundingUpdate:
		obs.FundingRate = e.Rate
		obs.Price = e.MarkPrice
		obs.Metric = e.OpenInterest
		obs.ObservedAt = e.Timestamp
	case market.LiquidationEvent:
		obs.Price = e.Price
		obs.LiquidationValue = e.TotalValue
		obs.ObservedAt = e.Timestamp
	case market.SentimentUpdate:
		obs.Sentiment = e.Value
		obs.ObservedAt = e.Timestamp
	case market.StablecoinUpdate:
		obs.Price = e.Price
		obs.ChangePct = e.PegDev * 100
		obs.Metric = e.MarketCap
		obs.ObservedAt = e.Timestamp
	case market.CorrelationUpdate:
		obs.Metric = e.Value
		obs.ObservedAt = e.Timestamp
	}

	return obs
}

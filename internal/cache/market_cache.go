package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-market-dashboard/internal/market"
	"github.com/utrading/utrading-market-dashboard/pkg/concurrent"
)

const sentimentKey = "fear_greed"

// MarketCache 市场状态缓存：feed 写入，快照/REST 接口与告警求值读取
type MarketCache struct {
	prices       concurrent.Map[string, market.PriceTick]
	funding      concurrent.Map[string, market.FundingUpdate]
	stablecoins  concurrent.Map[string, market.StablecoinUpdate]
	correlations concurrent.Map[string, market.CorrelationUpdate]
	sentiment    *gocache.Cache // 情绪指数带 TTL，过期视为数据缺失
	fgHistory    *fearGreedRing
}

// NewMarketCache 创建市场缓存
// sentimentTTL: 情绪指数有效期（上游轮询间隔的 2-3 倍）
func NewMarketCache(sentimentTTL time.Duration) *MarketCache {
	if sentimentTTL <= 0 {
		sentimentTTL = 15 * time.Minute
	}
	return &MarketCache{
		sentiment: gocache.New(sentimentTTL, sentimentTTL*2),
		fgHistory: newFearGreedRing(90), // 保留 90 天
	}
}

// SetPrice 更新现货价格
func (c *MarketCache) SetPrice(tick market.PriceTick) {
	c.prices.Store(tick.Asset, tick)
}

// GetPrice 获取现货价格
func (c *MarketCache) GetPrice(asset string) (market.PriceTick, bool) {
	return c.prices.Load(asset)
}

// SetFunding 更新资金费率；新条目未带持仓量时沿用已缓存的值，
// 返回合并后的条目
func (c *MarketCache) SetFunding(f market.FundingUpdate) market.FundingUpdate {
	if f.OpenInterest == 0 {
		if prev, ok := c.funding.Load(f.Asset); ok {
			f.OpenInterest = prev.OpenInterest
		}
	}
	c.funding.Store(f.Asset, f)
	return f
}

// SetOpenInterest 更新持仓量，合并进对应资产的资金费率条目。
// 返回合并后的条目，以及该资产此前是否已有资金费率数据
func (c *MarketCache) SetOpenInterest(asset string, oi float64) (market.FundingUpdate, bool) {
	f, ok := c.funding.Load(asset)
	f.Asset = asset
	f.OpenInterest = oi
	c.funding.Store(asset, f)
	return f, ok
}

// GetFunding 获取资金费率
func (c *MarketCache) GetFunding(asset string) (market.FundingUpdate, bool) {
	return c.funding.Load(asset)
}

// SetStablecoin 更新稳定币状态
func (c *MarketCache) SetStablecoin(s market.StablecoinUpdate) {
	c.stablecoins.Store(s.Asset, s)
}

// GetStablecoin 获取稳定币状态
func (c *MarketCache) GetStablecoin(asset string) (market.StablecoinUpdate, bool) {
	return c.stablecoins.Load(asset)
}

// SetCorrelation 更新跨资产相关性
func (c *MarketCache) SetCorrelation(u market.CorrelationUpdate) {
	c.correlations.Store(u.Pair, u)
}

// Correlations 获取全部相关性数据
func (c *MarketCache) Correlations() map[string]market.CorrelationUpdate {
	out := make(map[string]market.CorrelationUpdate)
	c.correlations.Range(func(k string, v market.CorrelationUpdate) bool {
		out[k] = v
		return true
	})
	return out
}

// SetSentiment 更新情绪指数并记入历史
func (c *MarketCache) SetSentiment(s market.SentimentUpdate) {
	c.sentiment.Set(sentimentKey, s, gocache.DefaultExpiration)
	c.fgHistory.add(s)
}

// GetSentiment 获取情绪指数（过期返回 false）
func (c *MarketCache) GetSentiment() (market.SentimentUpdate, bool) {
	v, ok := c.sentiment.Get(sentimentKey)
	if !ok {
		return market.SentimentUpdate{}, false
	}
	return v.(market.SentimentUpdate), true
}

// FearGreedHistory 返回最近 days 天的情绪指数
func (c *MarketCache) FearGreedHistory(days int) []market.SentimentUpdate {
	return c.fgHistory.recent(days)
}

// Snapshot 连接建立时推送的一次性市场快照
type Snapshot struct {
	Prices      map[string]market.PriceTick        `json:"prices"`
	Funding     map[string]market.FundingUpdate    `json:"funding"`
	Stablecoins map[string]market.StablecoinUpdate `json:"stablecoins"`
	Sentiment   *market.SentimentUpdate            `json:"sentiment,omitempty"`
	GeneratedAt time.Time                          `json:"generated_at"`
}

// Snapshot 汇总当前缓存状态；冷缓存时对应段为空，不阻塞连接
func (c *MarketCache) Snapshot() Snapshot {
	snap := Snapshot{
		Prices:      make(map[string]market.PriceTick),
		Funding:     make(map[string]market.FundingUpdate),
		Stablecoins: make(map[string]market.StablecoinUpdate),
		GeneratedAt: time.Now(),
	}

	c.prices.Range(func(k string, v market.PriceTick) bool {
		snap.Prices[k] = v
		return true
	})
	c.funding.Range(func(k string, v market.FundingUpdate) bool {
		snap.Funding[k] = v
		return true
	})
	c.stablecoins.Range(func(k string, v market.StablecoinUpdate) bool {
		snap.Stablecoins[k] = v
		return true
	})
	if s, ok := c.GetSentiment(); ok {
		snap.Sentiment = &s
	}

	return snap
}

// Stats 获取统计信息
func (c *MarketCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"price_count":      c.prices.Len(),
		"funding_count":    c.funding.Len(),
		"stablecoin_count": c.stablecoins.Len(),
	}
}

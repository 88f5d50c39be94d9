package feed

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// 接口 id -> 稳定币符号
var stablecoinIDs = map[string]string{
	"tether":      "USDT",
	"usd-coin":    "USDC",
	"binance-usd": "BUSD",
	"dai":         "DAI",
}

// stablecoinParser 解析稳定币行情接口响应，产出 StablecoinUpdate
type stablecoinParser struct {
	cache *cache.MarketCache
	queue *market.EventQueue
}

// NewStablecoinFeed 创建稳定币轮询源
func NewStablecoinFeed(url string, interval time.Duration, c *cache.MarketCache, q *market.EventQueue) *PollFeed {
	p := &stablecoinParser{cache: c, queue: q}
	return NewPollFeed("stablecoin", url, interval, p.handle)
}

func (p *stablecoinParser) handle(body []byte) error {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return fmt.Errorf("stablecoin response is not an object")
	}

	now := time.Now()
	matched := 0
	for id, symbol := range stablecoinIDs {
		entry := parsed.Get(id)
		if !entry.Exists() {
			continue
		}
		price := entry.Get("usd").Float()
		if price <= 0 {
			continue
		}
		matched++

		update := market.StablecoinUpdate{
			Asset:     symbol,
			Price:     price,
			MarketCap: entry.Get("usd_market_cap").Float(),
			PegDev:    price - 1.0,
			Timestamp: now,
		}

		p.cache.SetStablecoin(update)
		p.queue.Enqueue(update)
	}

	if matched == 0 {
		return fmt.Errorf("stablecoin response contains no known assets")
	}
	return nil
}

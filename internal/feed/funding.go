package feed

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// fundingParser 解析标记价格流（数组格式），产出 FundingUpdate
type fundingParser struct {
	cache *cache.MarketCache
	queue *market.EventQueue
}

// NewFundingFeed 创建资金费率流数据源
func NewFundingFeed(url string, c *cache.MarketCache, q *market.EventQueue) *WSFeed {
	p := &fundingParser{cache: c, queue: q}
	return NewWSFeed("funding", url, p.handle)
}

func (p *fundingParser) handle(msg []byte) error {
	parsed := gjson.ParseBytes(msg)
	if !parsed.IsArray() {
		return fmt.Errorf("funding message is not an array")
	}

	for _, item := range parsed.Array() {
		asset := normalizeSymbol(item.Get("s").String())
		if _, ok := trackedAssets[asset]; !ok {
			continue
		}

		update := market.FundingUpdate{
			Asset:     asset,
			Rate:      cast.ToFloat64(item.Get("r").String()),
			MarkPrice: cast.ToFloat64(item.Get("p").String()),
			Timestamp: time.UnixMilli(item.Get("E").Int()),
		}

		// 费率流不带持仓量，由缓存合并持仓量轮询源写入的值
		update = p.cache.SetFunding(update)
		p.queue.Enqueue(update)
	}
	return nil
}

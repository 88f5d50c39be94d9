package feed

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// openInterestParser 解析单符号持仓量接口，合并进资金费率缓存
type openInterestParser struct {
	cache *cache.MarketCache
	queue *market.EventQueue
}

// NewOpenInterestFeeds 为每个跟踪资产创建一个持仓量轮询源。
// 持仓量接口按符号查询，与资金费率流共用 FundingUpdate 事件
func NewOpenInterestFeeds(baseURL string, interval time.Duration,
	c *cache.MarketCache, q *market.EventQueue) []Source {
	p := &openInterestParser{cache: c, queue: q}
	sources := make([]Source, 0, len(trackedAssets))
	for asset := range trackedAssets {
		url := fmt.Sprintf("%s?symbol=%sUSDT", baseURL, asset)
		sources = append(sources, NewPollFeed("open_interest_"+asset, url, interval, p.handle))
	}
	return sources
}

func (p *openInterestParser) handle(msg []byte) error {
	parsed := gjson.ParseBytes(msg)

	asset := normalizeSymbol(parsed.Get("symbol").String())
	if asset == "" {
		return fmt.Errorf("open interest message missing symbol")
	}
	oi := cast.ToFloat64(parsed.Get("openInterest").String())
	if oi <= 0 {
		return fmt.Errorf("invalid open interest for %s", asset)
	}

	update, hasFunding := p.cache.SetOpenInterest(asset, oi)
	if !hasFunding {
		// 费率流还没接上，只暖缓存，不播一条零费率事件
		return nil
	}

	if ts := parsed.Get("time").Int(); ts > 0 {
		update.Timestamp = time.UnixMilli(ts)
	}
	p.queue.Enqueue(update)
	return nil
}

package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// 跟踪的资产，名单外的行情直接丢弃
var trackedAssets = map[string]struct{}{"BTC": {}, "ETH": {}, "SOL": {}}

// normalizeSymbol 把交易对符号归一为资产符号，如 BTCUSDT -> BTC
func normalizeSymbol(pair string) string {
	return strings.TrimSuffix(strings.ToUpper(pair), "USDT")
}

// tickerParser 解析 24h 行情流（数组格式），
// 每条产出一个 PriceTick：更新缓存并入队
type tickerParser struct {
	cache *cache.MarketCache
	queue *market.EventQueue
}

// NewTickerFeed 创建行情流数据源
func NewTickerFeed(url string, c *cache.MarketCache, q *market.EventQueue) *WSFeed {
	p := &tickerParser{cache: c, queue: q}
	return NewWSFeed("ticker", url, p.handle)
}

func (p *tickerParser) handle(msg []byte) error {
	parsed := gjson.ParseBytes(msg)
	if !parsed.IsArray() {
		return fmt.Errorf("ticker message is not an array")
	}

	for _, item := range parsed.Array() {
		asset := normalizeSymbol(item.Get("s").String())
		if _, ok := trackedAssets[asset]; !ok {
			continue
		}

		tick := market.PriceTick{
			Asset:     asset,
			Price:     cast.ToFloat64(item.Get("c").String()),
			Change24h: cast.ToFloat64(item.Get("P").String()),
			Volume24h: cast.ToFloat64(item.Get("q").String()),
			Timestamp: time.UnixMilli(item.Get("E").Int()),
		}
		if tick.Price <= 0 {
			continue
		}

		p.cache.SetPrice(tick)
		p.queue.Enqueue(tick)
	}
	return nil
}

package feed

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// liquidationParser 解析强平订单流，产出 LiquidationEvent。
// SELL 强平单意味着多头被清算，BUY 则是空头。
type liquidationParser struct {
	queue    *market.EventQueue
	exchange string
}

// NewLiquidationFeed 创建清算流数据源
func NewLiquidationFeed(url string, q *market.EventQueue) *WSFeed {
	p := &liquidationParser{queue: q, exchange: "binance"}
	return NewWSFeed("liquidation", url, p.handle)
}

func (p *liquidationParser) handle(msg []byte) error {
	order := gjson.GetBytes(msg, "o")
	if !order.Exists() {
		return fmt.Errorf("liquidation message missing order payload")
	}

	asset := normalizeSymbol(order.Get("s").String())
	if asset == "" {
		return fmt.Errorf("liquidation message missing symbol")
	}

	price := cast.ToFloat64(order.Get("p").String())
	qty := cast.ToFloat64(order.Get("q").String())
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("liquidation message has invalid price/quantity")
	}

	side := "SHORT"
	if order.Get("S").String() == "SELL" {
		side = "LONG"
	}

	p.queue.Enqueue(market.LiquidationEvent{
		Asset:      asset,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		TotalValue: price * qty,
		Exchange:   p.exchange,
		Timestamp:  time.UnixMilli(order.Get("T").Int()),
	})
	return nil
}

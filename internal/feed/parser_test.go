package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// captureHandler 收集队列里流过的事件
type captureHandler struct {
	mu     sync.Mutex
	events []market.Event
}

func (h *captureHandler) HandleEvent(ev market.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func (h *captureHandler) snapshot() []market.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]market.Event(nil), h.events...)
}

func testPipeline(t *testing.T) (*cache.MarketCache, *market.EventQueue, *captureHandler) {
	t.Helper()
	c := cache.NewMarketCache(time.Hour)
	h := &captureHandler{}
	q := market.NewEventQueue(64, h)
	q.Start()
	t.Cleanup(q.Stop)
	return c, q, h
}

func waitEvents(t *testing.T, h *captureHandler, n int) []market.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.snapshot()) >= n
	}, time.Second, 10*time.Millisecond)
	return h.snapshot()
}

func TestTickerParser(t *testing.T) {
	c, q, h := testPipeline(t)
	p := &tickerParser{cache: c, queue: q}

	msg := `[
		{"s":"BTCUSDT","c":"42500.5","P":"2.4","q":"1000000","E":1700000000000},
		{"s":"DOGEUSDT","c":"0.1","P":"10","q":"500","E":1700000000000},
		{"s":"ETHUSDT","c":"2500","P":"-1.2","q":"800000","E":1700000000000}
	]`
	require.NoError(t, p.handle([]byte(msg)))

	// 名单外的 DOGE 被丢弃
	events := waitEvents(t, h, 2)
	require.Len(t, events, 2)

	tick := events[0].(market.PriceTick)
	assert.Equal(t, "BTC", tick.Asset)
	assert.Equal(t, 42500.5, tick.Price)
	assert.Equal(t, 2.4, tick.Change24h)

	cached, ok := c.GetPrice("ETH")
	require.True(t, ok)
	assert.Equal(t, 2500.0, cached.Price)

	// 非数组消息报错（跳过，不断流）
	assert.Error(t, p.handle([]byte(`{"not":"array"}`)))
}

func TestFundingParser(t *testing.T) {
	c, q, h := testPipeline(t)
	p := &fundingParser{cache: c, queue: q}

	msg := `[{"s":"BTCUSDT","p":"42000","r":"0.00025","E":1700000000000}]`
	require.NoError(t, p.handle([]byte(msg)))

	events := waitEvents(t, h, 1)
	update := events[0].(market.FundingUpdate)
	assert.Equal(t, "BTC", update.Asset)
	assert.Equal(t, 0.00025, update.Rate)
	assert.Equal(t, 42000.0, update.MarkPrice)

	_, ok := c.GetFunding("BTC")
	assert.True(t, ok)
}

func TestOpenInterestParser(t *testing.T) {
	c, q, h := testPipeline(t)
	p := &openInterestParser{cache: c, queue: q}

	// 费率流未就绪：只暖缓存，不播零费率事件
	require.NoError(t, p.handle([]byte(`{"symbol":"BTCUSDT","openInterest":"85000.5","time":1700000000000}`)))
	cached, ok := c.GetFunding("BTC")
	require.True(t, ok)
	assert.Equal(t, 85000.5, cached.OpenInterest)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.snapshot())

	// 费率到达后持仓量随条目保留，费率事件带上两者
	fp := &fundingParser{cache: c, queue: q}
	require.NoError(t, fp.handle([]byte(`[{"s":"BTCUSDT","p":"42000","r":"0.00025","E":1700000000000}]`)))

	events := waitEvents(t, h, 1)
	update := events[0].(market.FundingUpdate)
	assert.Equal(t, 0.00025, update.Rate)
	assert.Equal(t, 85000.5, update.OpenInterest)

	// 此后持仓量更新本身也入队，沿用最近费率
	require.NoError(t, p.handle([]byte(`{"symbol":"BTCUSDT","openInterest":"90000","time":1700000060000}`)))
	events = waitEvents(t, h, 2)
	oiUpdate := events[1].(market.FundingUpdate)
	assert.Equal(t, 90000.0, oiUpdate.OpenInterest)
	assert.Equal(t, 0.00025, oiUpdate.Rate)

	assert.Error(t, p.handle([]byte(`{"openInterest":"1"}`)))
	assert.Error(t, p.handle([]byte(`{"symbol":"BTCUSDT","openInterest":"0"}`)))
}

func TestLiquidationParser(t *testing.T) {
	_, q, h := testPipeline(t)
	p := &liquidationParser{queue: q, exchange: "binance"}

	msg := `{"e":"forceOrder","o":{"s":"BTCUSDT","S":"SELL","p":"42000","q":"50","T":1700000000000}}`
	require.NoError(t, p.handle([]byte(msg)))

	events := waitEvents(t, h, 1)
	ev := events[0].(market.LiquidationEvent)
	assert.Equal(t, "BTC", ev.Asset)
	assert.Equal(t, "LONG", ev.Side, "SELL 强平单是多头被清算")
	assert.Equal(t, 2_100_000.0, ev.TotalValue)

	// 缺失订单体
	assert.Error(t, p.handle([]byte(`{"e":"forceOrder"}`)))
	// 非法数量
	assert.Error(t, p.handle([]byte(`{"o":{"s":"BTCUSDT","S":"BUY","p":"42000","q":"0"}}`)))
}

func TestSentimentParser(t *testing.T) {
	c, q, h := testPipeline(t)
	p := &sentimentParser{cache: c, queue: q}

	msg := `{"data":[{"value":"25","value_classification":"Extreme Fear","timestamp":"1700000000"}]}`
	require.NoError(t, p.handle([]byte(msg)))

	events := waitEvents(t, h, 1)
	update := events[0].(market.SentimentUpdate)
	assert.Equal(t, 25.0, update.Value)
	assert.Equal(t, "Extreme Fear", update.Classification)

	got, ok := c.GetSentiment()
	require.True(t, ok)
	assert.Equal(t, 25.0, got.Value)

	assert.Error(t, p.handle([]byte(`{"data":[]}`)))
	assert.Error(t, p.handle([]byte(`{"data":[{"value":"640"}]}`)))
}

func TestStablecoinParser(t *testing.T) {
	c, q, h := testPipeline(t)
	p := &stablecoinParser{cache: c, queue: q}

	msg := `{"tether":{"usd":0.9991,"usd_market_cap":90000000000},"dai":{"usd":1.0002}}`
	require.NoError(t, p.handle([]byte(msg)))

	events := waitEvents(t, h, 2)
	assert.Len(t, events, 2)

	usdt, ok := c.GetStablecoin("USDT")
	require.True(t, ok)
	assert.Equal(t, 0.9991, usdt.Price)
	assert.InDelta(t, -0.0009, usdt.PegDev, 1e-9)

	assert.Error(t, p.handle([]byte(`{"unknown-coin":{"usd":1}}`)))
}

func TestPearson(t *testing.T) {
	a := []float64{0.01, 0.02, -0.01, 0.03, -0.02}
	assert.InDelta(t, 1.0, pearson(a, a), 1e-9)

	inv := make([]float64, len(a))
	for i, v := range a {
		inv[i] = -v
	}
	assert.InDelta(t, -1.0, pearson(a, inv), 1e-9)

	flat := []float64{0, 0, 0, 0, 0}
	assert.True(t, pearson(a, flat) != pearson(a, flat), "零方差序列返回 NaN")
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utrading/utrading-market-dashboard/internal/market"
)

func TestMarketCache_PriceRoundTrip(t *testing.T) {
	c := NewMarketCache(time.Minute)

	_, ok := c.GetPrice("BTC")
	assert.False(t, ok)

	c.SetPrice(market.PriceTick{Asset: "BTC", Price: 43250, Timestamp: time.Now()})
	tick, ok := c.GetPrice("BTC")
	assert.True(t, ok)
	assert.Equal(t, 43250.0, tick.Price)

	// 覆盖更新
	c.SetPrice(market.PriceTick{Asset: "BTC", Price: 43300})
	tick, _ = c.GetPrice("BTC")
	assert.Equal(t, 43300.0, tick.Price)
}

func TestMarketCache_SentimentTTL(t *testing.T) {
	c := NewMarketCache(50 * time.Millisecond)

	c.SetSentiment(market.SentimentUpdate{Value: 25, Classification: "Fear", Timestamp: time.Now()})
	s, ok := c.GetSentiment()
	assert.True(t, ok)
	assert.Equal(t, 25.0, s.Value)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.GetSentiment()
	assert.False(t, ok)
}

func TestMarketCache_Snapshot(t *testing.T) {
	c := NewMarketCache(time.Minute)

	// 冷缓存：快照为空但可用
	snap := c.Snapshot()
	assert.Empty(t, snap.Prices)
	assert.Nil(t, snap.Sentiment)

	c.SetPrice(market.PriceTick{Asset: "BTC", Price: 43250})
	c.SetFunding(market.FundingUpdate{Asset: "ETH", Rate: 0.0001, OpenInterest: 120000})
	c.SetStablecoin(market.StablecoinUpdate{Asset: "USDT", Price: 0.999})
	c.SetSentiment(market.SentimentUpdate{Value: 70, Timestamp: time.Now()})

	snap = c.Snapshot()
	assert.Len(t, snap.Prices, 1)
	assert.Len(t, snap.Funding, 1)
	assert.Len(t, snap.Stablecoins, 1)
	assert.NotNil(t, snap.Sentiment)
	assert.Equal(t, 70.0, snap.Sentiment.Value)
}

func TestMarketCache_OpenInterestMergesIntoFunding(t *testing.T) {
	c := NewMarketCache(time.Minute)

	// 持仓量先到：条目建立但标记无费率数据
	_, hadFunding := c.SetOpenInterest("BTC", 80000)
	assert.False(t, hadFunding)

	// 费率覆盖写入时保留持仓量
	merged := c.SetFunding(market.FundingUpdate{Asset: "BTC", Rate: 0.0001})
	assert.Equal(t, 80000.0, merged.OpenInterest)

	f, ok := c.GetFunding("BTC")
	assert.True(t, ok)
	assert.Equal(t, 80000.0, f.OpenInterest)
	assert.Equal(t, 0.0001, f.Rate)

	// 持仓量更新保留费率，快照带上两者
	update, hadFunding := c.SetOpenInterest("BTC", 90000)
	assert.True(t, hadFunding)
	assert.Equal(t, 0.0001, update.Rate)

	snap := c.Snapshot()
	assert.Equal(t, 90000.0, snap.Funding["BTC"].OpenInterest)
}

func TestFearGreedHistory(t *testing.T) {
	c := NewMarketCache(time.Minute)

	now := time.Now()
	for i := 5; i >= 1; i-- {
		c.SetSentiment(market.SentimentUpdate{
			Value:     float64(10 * i),
			Timestamp: now.AddDate(0, 0, -i),
		})
	}

	hist := c.FearGreedHistory(3)
	assert.Len(t, hist, 3)
	assert.Equal(t, 30.0, hist[0].Value)
	assert.Equal(t, 10.0, hist[2].Value)

	// 同一天更新覆盖
	c.SetSentiment(market.SentimentUpdate{Value: 99, Timestamp: now.AddDate(0, 0, -1)})
	hist = c.FearGreedHistory(1)
	assert.Equal(t, 99.0, hist[0].Value)
}

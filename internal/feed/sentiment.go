package feed

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// sentimentParser 解析恐惧贪婪指数接口响应，产出 SentimentUpdate
type sentimentParser struct {
	cache *cache.MarketCache
	queue *market.EventQueue
}

// NewSentimentFeed 创建情绪指数轮询源
func NewSentimentFeed(url string, interval time.Duration, c *cache.MarketCache, q *market.EventQueue) *PollFeed {
	p := &sentimentParser{cache: c, queue: q}
	return NewPollFeed("sentiment", url, interval, p.handle)
}

func (p *sentimentParser) handle(body []byte) error {
	latest := gjson.GetBytes(body, "data.0")
	if !latest.Exists() {
		return fmt.Errorf("sentiment response missing data")
	}

	value := cast.ToFloat64(latest.Get("value").String())
	if value < 0 || value > 100 {
		return fmt.Errorf("sentiment value out of range: %v", value)
	}

	ts := time.Unix(cast.ToInt64(latest.Get("timestamp").String()), 0)
	if ts.IsZero() || ts.Unix() <= 0 {
		ts = time.Now()
	}

	update := market.SentimentUpdate{
		Value:          value,
		Classification: latest.Get("value_classification").String(),
		Timestamp:      ts,
	}

	p.cache.SetSentiment(update)
	p.queue.Enqueue(update)
	return nil
}

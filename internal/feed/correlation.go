package feed

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
	"github.com/utrading/utrading-market-dashboard/internal/market"
)

const correlationWindow = 60 // 相关性采样窗口（样本数）

// CorrelationFeed 派生数据源：定期从价格缓存采样，
// 计算跟踪资产两两收益率的皮尔逊相关系数
type CorrelationFeed struct {
	cache    *cache.MarketCache
	queue    *market.EventQueue
	interval time.Duration
	healthy  atomic.Bool

	samples map[string][]float64 // asset -> 最近价格序列
	pairs   [][2]string
}

// NewCorrelationFeed 创建相关性计算源
func NewCorrelationFeed(interval time.Duration, c *cache.MarketCache, q *market.EventQueue) *CorrelationFeed {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CorrelationFeed{
		cache:    c,
		queue:    q,
		interval: interval,
		samples:  make(map[string][]float64),
		pairs:    [][2]string{{"BTC", "ETH"}, {"BTC", "SOL"}, {"ETH", "SOL"}},
	}
}

func (f *CorrelationFeed) Name() string { return "correlation" }

func (f *CorrelationFeed) Healthy() bool { return f.healthy.Load() }

// Stream 周期采样直到 ctx 取消。本源无外部连接，永不主动退出。
func (f *CorrelationFeed) Stream(ctx context.Context) error {
	f.healthy.Store(true)
	defer f.healthy.Store(false)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.sample()
		}
	}
}

// sample 采样一轮价格并重算每对资产的相关系数
func (f *CorrelationFeed) sample() {
	now := time.Now()
	for asset := range trackedAssets {
		tick, ok := f.cache.GetPrice(asset)
		if !ok || tick.Price <= 0 {
			continue
		}
		s := append(f.samples[asset], tick.Price)
		if len(s) > correlationWindow {
			s = s[len(s)-correlationWindow:]
		}
		f.samples[asset] = s
	}

	for _, pair := range f.pairs {
		a, b := returns(f.samples[pair[0]]), returns(f.samples[pair[1]])
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		// 样本太少时系数无意义
		if n < 10 {
			continue
		}

		value := pearson(a[len(a)-n:], b[len(b)-n:])
		if math.IsNaN(value) {
			continue
		}

		update := market.CorrelationUpdate{
			Pair:      pair[0] + "-" + pair[1],
			Value:     value,
			Window:    f.interval.String(),
			Timestamp: now,
		}
		f.cache.SetCorrelation(update)
		f.queue.Enqueue(update)
	}
}

// returns 价格序列转收益率序列
func returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out = append(out, prices[i]/prices[i-1]-1)
	}
	return out
}

// pearson 皮尔逊相关系数
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 {
		return math.NaN()
	}

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}

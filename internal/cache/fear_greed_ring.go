package cache

import (
	"sync"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/market"
)

// fearGreedRing 情绪指数历史环形缓冲，每天保留最后一条
type fearGreedRing struct {
	mu      sync.RWMutex
	maxDays int
	entries []market.SentimentUpdate // 按时间升序
}

func newFearGreedRing(maxDays int) *fearGreedRing {
	return &fearGreedRing{maxDays: maxDays}
}

func (r *fearGreedRing) add(s market.SentimentUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := s.Timestamp.Truncate(24 * time.Hour)
	if n := len(r.entries); n > 0 && r.entries[n-1].Timestamp.Truncate(24*time.Hour).Equal(day) {
		r.entries[n-1] = s
		return
	}

	r.entries = append(r.entries, s)
	if len(r.entries) > r.maxDays {
		r.entries = r.entries[len(r.entries)-r.maxDays:]
	}
}

// recent 返回最近 days 天的记录（升序）
func (r *fearGreedRing) recent(days int) []market.SentimentUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if days <= 0 || days > len(r.entries) {
		days = len(r.entries)
	}

	out := make([]market.SentimentUpdate, days)
	copy(out, r.entries[len(r.entries)-days:])
	return out
}

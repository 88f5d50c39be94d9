package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cast"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
)

// APIServer 只读行情聚合接口，全部从缓存返回；
// 上游 feed 中断时这些端点依然可用（数据变旧但不报错）
type APIServer struct {
	cache *cache.MarketCache
}

// NewAPIServer 创建聚合接口服务
func NewAPIServer(c *cache.MarketCache) *APIServer {
	return &APIServer{cache: c}
}

// Register 注册 /api/v1 路由
func (s *APIServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/market/overview", s.marketOverview)
	mux.HandleFunc("/api/v1/derivatives/overview", s.derivativesOverview)
	mux.HandleFunc("/api/v1/stablecoins/overview", s.stablecoinOverview)
	mux.HandleFunc("/api/v1/sentiment/fear-greed", s.fearGreedHistory)
	mux.HandleFunc("/api/v1/cross-asset/overview", s.crossAssetOverview)
}

func (s *APIServer) marketOverview(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	writeJSON(w, map[string]any{
		"prices":       snap.Prices,
		"sentiment":    snap.Sentiment,
		"generated_at": snap.GeneratedAt,
	})
}

func (s *APIServer) derivativesOverview(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	writeJSON(w, map[string]any{
		"funding":      snap.Funding,
		"generated_at": snap.GeneratedAt,
	})
}

func (s *APIServer) stablecoinOverview(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	writeJSON(w, map[string]any{
		"stablecoins":  snap.Stablecoins,
		"generated_at": snap.GeneratedAt,
	})
}

func (s *APIServer) fearGreedHistory(w http.ResponseWriter, r *http.Request) {
	days := cast.ToInt(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	writeJSON(w, map[string]any{
		"days":    days,
		"history": s.cache.FearGreedHistory(days),
	})
}

func (s *APIServer) crossAssetOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"correlations": s.cache.Correlations(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

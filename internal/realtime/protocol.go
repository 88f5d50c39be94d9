package realtime

import (
	"bytes"
	"encoding/json"
	"strings"
)

// 客户端 -> 服务端事件
const (
	EvtSubscribePrices       = "subscribe:prices"
	EvtSubscribeFunding      = "subscribe:funding"
	EvtSubscribeLiquidations = "subscribe:liquidations"
	EvtSubscribeSentiment    = "subscribe:sentiment"
	EvtSubscribeStablecoins  = "subscribe:stablecoins"
	EvtSubscribeCorrelations = "subscribe:correlations"
	EvtUnsubscribe           = "unsubscribe"
	EvtPing                  = "ping"
)

// 服务端 -> 客户端事件
const (
	EvtConnectionStatus     = "connection:status"
	EvtMarketSnapshot       = "market:snapshot"
	EvtPriceUpdate          = "price:update"
	EvtFundingUpdate        = "funding:update"
	EvtLiquidationAlert     = "liquidation:alert"
	EvtLargeLiquidation     = "alert:large_liquidation"
	EvtSentimentUpdate      = "sentiment:update"
	EvtStablecoinUpdate     = "stablecoin:update"
	EvtCorrelationUpdate    = "correlation:update"
	EvtSubscribeConfirmed   = "subscription:confirmed"
	EvtUnsubscribeConfirmed = "unsubscribe:confirmed"
	EvtPong                 = "pong"
)

// 订阅类别
const (
	CategoryPrices       = "prices"
	CategoryFunding      = "funding"
	CategoryLiquidations = "liquidations"
	CategorySentiment    = "sentiment"
	CategoryStablecoins  = "stablecoins"
	CategoryCorrelations = "correlations"
)

// 符号白名单，名单外的符号静默过滤
var (
	priceSymbols      = map[string]struct{}{"BTC": {}, "ETH": {}, "SOL": {}}
	stablecoinSymbols = map[string]struct{}{"USDT": {}, "USDC": {}, "BUSD": {}, "DAI": {}}
)

// ClientMessage 客户端入站消息
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SubscribeData 订阅参数
type SubscribeData struct {
	Symbols []string `json:"symbols,omitempty"`
}

// UnmarshalJSON 兼容两种载荷：{"symbols":[...]} 对象或裸符号数组
func (d *SubscribeData) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &d.Symbols)
	}
	type plain SubscribeData
	return json.Unmarshal(b, (*plain)(d))
}

// UnsubscribeData 退订参数
type UnsubscribeData struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets,omitempty"`
}

// ServerMessage 服务端出站消息
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Encode 序列化出站消息
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// topicKey 类别 + 符号拼出房间键，无符号维度时就是类别本身。
// 带符号的房间键用类别单数形式，如 price:BTC / funding:ETH / stablecoin:USDT。
func topicKey(category, symbol string) string {
	if symbol == "" {
		return category
	}
	return strings.TrimSuffix(category, "s") + ":" + strings.ToUpper(symbol)
}

// resolveTopics 白名单过滤 + 去重，返回房间键与确认给客户端的符号集。
// 空符号列表表示订阅类别的宽房间。
func resolveTopics(category string, symbols []string) (keys []string, accepted []string) {
	if len(symbols) == 0 {
		return []string{category}, nil
	}

	var allow map[string]struct{}
	switch category {
	case CategoryPrices, CategoryFunding:
		allow = priceSymbols
	case CategoryStablecoins:
		allow = stablecoinSymbols
	default:
		// 无符号维度的类别忽略符号参数
		return []string{category}, nil
	}

	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if _, ok := allow[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		keys = append(keys, topicKey(category, s))
		accepted = append(accepted, s)
	}
	return keys, accepted
}

package nats

import (
	"encoding/json"

	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

const TopicAlertTriggered = "alert_triggered"

// AlertEvent 告警触发事件消息（下游消费：看板、审计）
type AlertEvent struct {
	HistoryID uint    `json:"history_id"` // 触发记录 ID
	RuleID    uint    `json:"rule_id"`    // 规则 ID
	UserID    uint    `json:"user_id"`    // 所属用户
	Symbol    string  `json:"symbol"`     // 资产符号
	AlertType string  `json:"alert_type"` // 告警类型
	Severity  string  `json:"severity"`   // 严重级别
	Title     string  `json:"title"`      // 标题
	Value     float64 `json:"value"`      // 触发时观测值
	Status    string  `json:"status"`     // sent/failed
	Timestamp int64   `json:"timestamp"`  // 时间戳
}

// Marshal 序列化事件
func (e *AlertEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Error().Err(err).Msg("marshal alert event failed")
		return nil, err
	}
	return data, nil
}

package models

import (
	"encoding/json"
	"time"
)

// 历史记录状态
const (
	HistoryStatusPending      = "pending"
	HistoryStatusSent         = "sent"
	HistoryStatusFailed       = "failed"
	HistoryStatusAcknowledged = "acknowledged"
	HistoryStatusDismissed    = "dismissed"
)

// 单渠道投递状态
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// AlertHistory 告警触发记录，每次触发一行
type AlertHistory struct {
	ID     uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint  `gorm:"not null;index:idx_user_created;comment:所属用户" json:"user_id"`
	RuleID *uint `gorm:"index;comment:来源规则，规则删除后置空" json:"rule_id"`

	// 触发时快照
	Symbol   string `gorm:"type:varchar(24);not null;index;comment:资产符号" json:"symbol"`
	Title    string `gorm:"type:varchar(128);not null;comment:标题" json:"title"`
	Message  string `gorm:"type:varchar(512);not null;comment:内容" json:"message"`
	Severity string `gorm:"type:varchar(12);not null;comment:严重级别" json:"severity"`
	Methods  string `gorm:"type:varchar(64);not null;comment:尝试的通知渠道" json:"methods"`

	// 触发上下文（创建后不可变，留作审计）
	Context string `gorm:"type:text;comment:触发上下文(JSON)" json:"context"`

	// 投递结果
	Status         string     `gorm:"type:varchar(16);not null;default:pending;index;comment:整体状态" json:"status"`
	DeliveryStatus string     `gorm:"type:text;comment:各渠道投递状态(JSON)" json:"delivery_status"`
	SentAt         *time.Time `gorm:"comment:投递成功时间" json:"sent_at"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_user_created,idx_created;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (AlertHistory) TableName() string {
	return "alert_histories"
}

// TriggerContext 触发时的观测快照
type TriggerContext struct {
	Value      float64 `json:"value"`
	Threshold  float64 `json:"threshold,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	Indicator  string  `json:"indicator,omitempty"`
	Raw        string  `json:"raw,omitempty"`
}

// DeliveryResult 单渠道投递结果
type DeliveryResult struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
	Code      int       `json:"code,omitempty"` // 传输层状态码，如 webhook 的 HTTP status
}

// SetContext 序列化触发上下文
func (h *AlertHistory) SetContext(ctx TriggerContext) {
	if data, err := json.Marshal(ctx); err == nil {
		h.Context = string(data)
	}
}

// DeliveryMap 解析各渠道投递状态
func (h *AlertHistory) DeliveryMap() map[string]DeliveryResult {
	if h.DeliveryStatus == "" {
		return nil
	}
	var m map[string]DeliveryResult
	if err := json.Unmarshal([]byte(h.DeliveryStatus), &m); err != nil {
		return nil
	}
	return m
}

// MarshalDeliveryMap 序列化各渠道投递状态
func MarshalDeliveryMap(m map[string]DeliveryResult) string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

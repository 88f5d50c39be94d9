package models

import (
	"encoding/json"
	"strings"
	"time"
)

// 告警类型
const (
	AlertTypePriceAbove  = "price_above"
	AlertTypePriceBelow  = "price_below"
	AlertTypePriceChange = "price_change"
	AlertTypeVolumeSpike = "volume_spike"
	AlertTypeFundingRate = "funding_rate"
	AlertTypeLiquidation = "liquidation"
	AlertTypeSentiment   = "sentiment"
	AlertTypeEtfFlow     = "etf_flow"
	AlertTypeCrossAsset  = "cross_asset"
	AlertTypeIndicator   = "technical_indicator"
)

// 严重级别
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// 通知渠道
const (
	MethodEmail   = "email"
	MethodSMS     = "sms"
	MethodPush    = "push"
	MethodWebhook = "webhook"
)

// AlertRule 用户定义的告警规则
type AlertRule struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint `gorm:"not null;index:idx_user;comment:所属用户" json:"user_id"`

	// 目标
	Symbol    string `gorm:"type:varchar(24);not null;index;comment:资产符号" json:"symbol"`
	AlertType string `gorm:"type:varchar(32);not null;index;comment:告警类型" json:"alert_type"`

	// 条件参数（具体字段随告警类型而定）
	Threshold  float64 `gorm:"type:decimal(28,12);comment:阈值" json:"threshold"`
	Operator   string  `gorm:"type:varchar(8);comment:比较运算符 gt/lt/gte/lte" json:"operator"`
	Percentage float64 `gorm:"type:decimal(18,4);comment:百分比阈值" json:"percentage"`
	Timeframe  string  `gorm:"type:varchar(16);comment:时间窗口，如 1h/24h" json:"timeframe"`
	Indicator  string  `gorm:"type:varchar(32);comment:指标名称" json:"indicator"`
	Params     string  `gorm:"type:text;comment:附加参数(JSON)" json:"params"`

	Severity string `gorm:"type:varchar(12);not null;default:medium;comment:严重级别" json:"severity"`

	// 通知配置
	Methods        string `gorm:"type:varchar(64);not null;comment:通知渠道，逗号分隔" json:"methods"`
	OverrideConfig string `gorm:"type:text;comment:渠道目标覆盖(JSON)" json:"override_config"`

	// 生命周期
	IsActive  bool `gorm:"not null;default:true;index;comment:是否启用" json:"is_active"`
	IsOneTime bool `gorm:"not null;default:false;comment:触发一次后自动停用" json:"is_one_time"`

	// 触发记录
	TriggerCount    int        `gorm:"not null;default:0;comment:累计触发次数" json:"trigger_count"`
	LastTriggeredAt *time.Time `gorm:"comment:上次触发时间" json:"last_triggered_at"`
	CooldownMinutes int        `gorm:"not null;default:60;comment:触发冷却（分钟）" json:"cooldown_minutes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (AlertRule) TableName() string {
	return "alert_rules"
}

// MethodList 解析通知渠道列表
func (r *AlertRule) MethodList() []string {
	if r.Methods == "" {
		return nil
	}
	parts := strings.Split(r.Methods, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OverrideFor 解析指定渠道的目标覆盖配置
func (r *AlertRule) OverrideFor(method string) ChannelOverride {
	var all map[string]ChannelOverride
	if r.OverrideConfig != "" {
		if err := json.Unmarshal([]byte(r.OverrideConfig), &all); err == nil {
			if ov, ok := all[method]; ok {
				return ov
			}
		}
	}
	return ChannelOverride{}
}

// ParamMap 解析附加参数
func (r *AlertRule) ParamMap() map[string]any {
	if r.Params == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(r.Params), &m); err != nil {
		return nil
	}
	return m
}

// Cooldown 冷却时长
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// ChannelOverride 单渠道目标覆盖
type ChannelOverride struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
	Secret     string `json:"secret,omitempty"`
	PushToken  string `json:"push_token,omitempty"`
}

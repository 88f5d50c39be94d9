package models

import "time"

// User 告警接收用户及默认通知偏好
type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名" json:"username"`

	// 默认通知目标（规则级 OverrideConfig 优先）
	Email         string `gorm:"type:varchar(128);comment:默认邮箱" json:"email"`
	Phone         string `gorm:"type:varchar(32);comment:默认手机号" json:"phone"`
	PushToken     string `gorm:"type:varchar(256);comment:默认推送令牌" json:"push_token"`
	WebhookURL    string `gorm:"type:varchar(512);comment:默认 webhook 地址" json:"webhook_url"`
	WebhookSecret string `gorm:"type:varchar(128);comment:webhook 签名密钥" json:"webhook_secret"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

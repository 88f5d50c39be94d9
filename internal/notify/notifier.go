package notify

import (
	"context"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// Result 单渠道投递结果。适配器内部吞掉所有传输错误，
// 只通过 Result 上报，绝不向外抛出。
type Result struct {
	Success     bool
	DeliveredAt time.Time
	Err         string
	Code        int // 传输层状态码（webhook/sms 的 HTTP status）
}

// Notifier 通知渠道适配器接口
type Notifier interface {
	// Method 渠道标识：email/sms/push/webhook
	Method() string
	// Send 投递一条告警。目标解析顺序：规则级 override 优先，
	// 其次用户默认配置；两者都缺失时返回配置错误的失败结果。
	Send(ctx context.Context, user *models.User, h *models.AlertHistory, override models.ChannelOverride) Result
}

func success(code int) Result {
	return Result{Success: true, DeliveredAt: time.Now(), Code: code}
}

func failure(err string, code int) Result {
	return Result{Success: false, Err: err, Code: code}
}

// ToDelivery 转换为持久化的投递状态
func (r Result) ToDelivery() models.DeliveryResult {
	status := models.DeliveryFailed
	ts := time.Now()
	if r.Success {
		status = models.DeliverySent
		ts = r.DeliveredAt
	}
	return models.DeliveryResult{
		Status:    status,
		Timestamp: ts,
		Error:     r.Err,
		Code:      r.Code,
	}
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// PushPublisher 推送消息发布接口（由 NATS 发布器实现，
// 实际的移动端推送网关消费对应主题）
type PushPublisher interface {
	Publish(subject string, data []byte) error
}

// PushNotifier 推送渠道，按设备令牌发布到 NATS 主题
type PushNotifier struct {
	publisher     PushPublisher
	subjectPrefix string
}

// NewPushNotifier 创建推送渠道
func NewPushNotifier(publisher PushPublisher, subjectPrefix string) *PushNotifier {
	if subjectPrefix == "" {
		subjectPrefix = "push.alert"
	}
	return &PushNotifier{
		publisher:     publisher,
		subjectPrefix: subjectPrefix,
	}
}

func (n *PushNotifier) Method() string { return models.MethodPush }

func (n *PushNotifier) Send(ctx context.Context, user *models.User, h *models.AlertHistory, override models.ChannelOverride) Result {
	token := override.PushToken
	if token == "" && user != nil {
		token = user.PushToken
	}
	if token == "" {
		return failure("no push token configured for push notifications", 0)
	}
	if n.publisher == nil {
		return failure("push publisher not configured", 0)
	}

	payload, err := json.Marshal(map[string]any{
		"token":    token,
		"title":    h.Title,
		"body":     h.Message,
		"severity": h.Severity,
		"symbol":   h.Symbol,
	})
	if err != nil {
		return failure(fmt.Sprintf("encode push payload: %v", err), 0)
	}

	if err = n.publisher.Publish(n.subjectPrefix+"."+h.Severity, payload); err != nil {
		return failure(fmt.Sprintf("publish push message failed: %v", err), 0)
	}

	return success(0)
}

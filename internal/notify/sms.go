package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/utrading/utrading-market-dashboard/config"
	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// SMSNotifier 短信渠道，通过 HTTP 网关发送
type SMSNotifier struct {
	cfg    config.Notify
	client *http.Client
}

// NewSMSNotifier 创建短信渠道
func NewSMSNotifier(cfg config.Notify) *SMSNotifier {
	return &SMSNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (n *SMSNotifier) Method() string { return models.MethodSMS }

func (n *SMSNotifier) Send(ctx context.Context, user *models.User, h *models.AlertHistory, override models.ChannelOverride) Result {
	phone := override.Phone
	if phone == "" && user != nil {
		phone = user.Phone
	}
	if phone == "" {
		return failure("no phone number configured for SMS notifications", 0)
	}
	if n.cfg.SMSGatewayURL == "" {
		return failure("sms gateway not configured", 0)
	}

	payload, err := json.Marshal(map[string]string{
		"to":      phone,
		"message": fmt.Sprintf("%s: %s", h.Title, h.Message),
	})
	if err != nil {
		return failure(fmt.Sprintf("encode sms payload: %v", err), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.SMSGatewayURL, bytes.NewReader(payload))
	if err != nil {
		return failure(fmt.Sprintf("build sms request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.SMSAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.SMSAPIKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("sms gateway request failed: %v", err), 0)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return failure(fmt.Sprintf("sms gateway returned %d", resp.StatusCode), resp.StatusCode)
	}

	return success(resp.StatusCode)
}

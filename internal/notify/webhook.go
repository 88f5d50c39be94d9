package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/utrading/utrading-market-dashboard/config"
	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// WebhookNotifier webhook 渠道，POST JSON 到用户配置的地址。
// 配置了密钥时附带 HMAC-SHA256 签名头。
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier 创建 webhook 渠道
func NewWebhookNotifier(cfg config.Notify) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (n *WebhookNotifier) Method() string { return models.MethodWebhook }

func (n *WebhookNotifier) Send(ctx context.Context, user *models.User, h *models.AlertHistory, override models.ChannelOverride) Result {
	url := override.WebhookURL
	secret := override.Secret
	if url == "" && user != nil {
		url = user.WebhookURL
		secret = user.WebhookSecret
	}
	if url == "" {
		return failure("no webhook URL configured for webhook notifications", 0)
	}

	payload, err := json.Marshal(map[string]any{
		"id":        h.ID,
		"symbol":    h.Symbol,
		"title":     h.Title,
		"message":   h.Message,
		"severity":  h.Severity,
		"context":   json.RawMessage(nonEmptyJSON(h.Context)),
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return failure(fmt.Sprintf("encode webhook payload: %v", err), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure(fmt.Sprintf("build webhook request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Alert-Signature", sign(payload, secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("webhook request failed: %v", err), 0)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return failure(fmt.Sprintf("webhook returned %d", resp.StatusCode), resp.StatusCode)
	}

	return success(resp.StatusCode)
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func nonEmptyJSON(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

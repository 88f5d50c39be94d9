package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/utrading/utrading-market-dashboard/config"
	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// EmailNotifier SMTP 邮件渠道
type EmailNotifier struct {
	cfg config.Notify
	// 可替换的发送函数，测试时注入
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier 创建邮件渠道
func NewEmailNotifier(cfg config.Notify) *EmailNotifier {
	return &EmailNotifier{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (n *EmailNotifier) Method() string { return models.MethodEmail }

func (n *EmailNotifier) Send(ctx context.Context, user *models.User, h *models.AlertHistory, override models.ChannelOverride) Result {
	// 目标解析：规则覆盖 > 用户默认
	to := override.Email
	if to == "" && user != nil {
		to = user.Email
	}
	if to == "" {
		return failure("no email address configured for email notifications", 0)
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", n.cfg.SMTPUser))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: [%s] %s\r\n", strings.ToUpper(h.Severity), h.Title))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(h.Message)
	msg.WriteString("\r\n")

	var auth smtp.Auth
	if n.cfg.SMTPPassword != "" {
		host := n.cfg.SMTPAddr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, host)
	}

	if err := n.sendMail(n.cfg.SMTPAddr, auth, n.cfg.SMTPUser, []string{to}, []byte(msg.String())); err != nil {
		return failure(fmt.Sprintf("smtp send failed: %v", err), 0)
	}

	return success(0)
}

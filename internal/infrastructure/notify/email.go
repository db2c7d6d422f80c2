package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"stock-monitor/internal/domain/alert"
)

// EmailConfig 為 SMTP 通道所需的完整設定。
// 任一欄位缺漏屬設定錯誤（CONFIG_ERROR）：通道直接停用、不重試，
// 由 Validate 在組裝階段擋下。
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
}

// Validate 檢查設定完整性。
func (c EmailConfig) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Port == 0 {
		missing = append(missing, "port")
	}
	if c.From == "" {
		missing = append(missing, "from")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.To == "" {
		missing = append(missing, "to")
	}
	if len(missing) > 0 {
		return fmt.Errorf("smtp config incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// EmailClient 以 SMTP 寄送通知信。
type EmailClient struct {
	cfg EmailConfig
	// sendMail 供測試替換，預設 smtp.SendMail
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailClient 建立 SMTP client；設定不完整時回傳錯誤，呼叫端應停用此通道。
func NewEmailClient(cfg EmailConfig) (*EmailClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EmailClient{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Channel 實作 alert.Sender。
func (c *EmailClient) Channel() alert.Channel { return alert.ChannelEmail }

// Send 寄出一封通知信。smtp.SendMail 本身不吃 ctx，
// 以 goroutine 包一層讓逾時仍然有效，不會卡住排程器。
func (c *EmailClient) Send(ctx context.Context, title, body string) error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	auth := smtp.PlainAuth("", c.cfg.From, c.cfg.Password, c.cfg.Host)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", c.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", title)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(addr, auth, c.cfg.From, []string{c.cfg.To}, []byte(msg.String()))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

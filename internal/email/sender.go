package email

import (
	"fmt"

	"dreamjournal/internal/config"

	"gopkg.in/gomail.v2"
)

// Sender 定义了尽力而为的通知邮件发送接口。
// 发送失败由调用方记录并吞掉，绝不影响触发它的协议操作。
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// smtpSender 是 Sender 的 gomail/SMTP 实现。
type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender 根据配置创建 SMTP 发送器。
func NewSMTPSender(cfg config.SMTPConfig) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send 同步发送一封 HTML 邮件。
func (s *smtpSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件到 %s 失败: %w", to, err)
	}
	return nil
}

package notification

import (
	"context"
	"fmt"

	"SafeStack/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type MailConfig struct {
	Host     string `env:"MAIL_HOST"`
	Port     int    `env:"MAIL_PORT"`
	Username string `env:"MAIL_USERNAME"`
	Password string `env:"MAIL_PASSWORD"`
	From     string `env:"MAIL_FROM"`
}

// MailClient 便于替换/注入的发送接口，默认是 gomail 的 SMTP Dialer
type MailClient interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	cfg      MailConfig
	cli      MailClient
	composer *Composer
}

func NewMailer(cfg MailConfig, composer *Composer) *Mailer {
	var cli MailClient
	if cfg.Host != "" {
		cli = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return NewMailerWithClient(cfg, cli, composer)
}

func NewMailerWithClient(cfg MailConfig, cli MailClient, composer *Composer) *Mailer {
	return &Mailer{cfg: cfg, cli: cli, composer: composer}
}

// SendAlertEmail sends one alert to recipient with plain-text and HTML parts.
func (m *Mailer) SendAlertEmail(ctx context.Context, recipient string, imageURLs []string, body, subject string) error {
	if m.cli == nil {
		return fmt.Errorf("mail client not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	html, err := m.composer.HTML(body, imageURLs)
	if err != nil {
		return fmt.Errorf("render alert email: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, "SafeStack Alerts")
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.AddAlternative("text/html", html)

	if err := m.cli.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert email to %s: %w", recipient, err)
	}
	logger.Info("alert email sent", zap.String("to", recipient), zap.String("subject", subject))
	return nil
}

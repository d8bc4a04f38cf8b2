package notify

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/wneessen/go-mail"

	"leadpilot-backend/internal/models"
)

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender sends alerts to the tenant's notification addresses over SMTP.
type EmailSender struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewEmailSender creates an EmailSender. It fails when the SMTP host is missing.
func NewEmailSender(cfg SMTPConfig) (*EmailSender, error) {
	opts := []mail.Option{mail.WithTLSPortPolicy(mail.TLSMandatory)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailSender{cfg: cfg, client: client}, nil
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Accepts(alert models.HotLeadAlert) bool {
	return len(alert.Recipients) > 0
}

// Send builds the message and sends it in one SMTP session.
func (s *EmailSender) Send(ctx context.Context, alert models.HotLeadAlert, content Content) error {
	msg, err := buildMessage(s.cfg.From, alert.Recipients, content)
	if err != nil {
		return backoff.Permanent(err)
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email to %v: %w", alert.Recipients, err)
	}
	return nil
}

func buildMessage(from string, to []string, content Content) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient list: %w", err)
	}
	msg.Subject(content.Subject)
	msg.SetBodyString(mail.TypeTextPlain, content.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, content.HTML)
	return msg, nil
}

package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/healthdesk/admin-api/internal/config"
	"github.com/healthdesk/admin-api/pkg/logger"
)

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// NewService returns an SMTP sender when a host is configured and a
// log-only sender otherwise.
func NewService(cfg config.SMTPConfig, log *logger.Logger) Service {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled() {
		return &logService{log: log}
	}
	return NewSMTPService(cfg)
}

type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) SendCustom(ctx context.Context, to, subject, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.message(to, subject, content)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPService) message(to, subject, content string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	return m
}

type logService struct {
	log *logger.Logger
}

func (s *logService) SendCustom(ctx context.Context, to, subject, _ string) error {
	s.log.WithRequestID(ctx).Info("SMTP disabled, email not sent", "to", to, "subject", subject)
	return nil
}

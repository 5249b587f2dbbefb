package notify

import (
	"context"
	"fmt"
	"time"

	mail "gopkg.in/mail.v2"
)

// smtpDialTimeout caps SMTP dial plus read/write per send.
const smtpDialTimeout = 10 * time.Second

// SMTPConfig holds mail server credentials, typically read from the
// environment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends messages through a single SMTP account.
type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	dialer := mail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	dialer.Timeout = smtpDialTimeout
	dialer.StartTLSPolicy = mail.OpportunisticStartTLS
	return &SMTPMailer{dialer: dialer, from: cfg.From}, nil
}

// Send delivers one message. The context deadline is honored by running the
// dial-and-send in a goroutine; mail.v2 has no context support of its own.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	mm := mail.NewMessage()
	mm.SetHeader("From", m.from)
	mm.SetHeader("To", msg.To...)
	mm.SetHeader("Subject", msg.Subject)
	mm.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(mm)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}
}

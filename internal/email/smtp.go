package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// errInvalidMessage marks failures that a retry cannot fix.
var errInvalidMessage = errors.New("invalid email message")

// SMTPSender delivers through a direct SMTP connection via go-mail. Transient
// failures are retried a bounded number of times with exponential backoff.
type SMTPSender struct {
	host        string
	port        int
	username    string
	password    string
	fromName    string
	fromEmail   string
	maxAttempts int
	backoff     time.Duration
	log         *logger.Logger

	deliver func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTPSender returns NoopSender when SMTP is not configured.
func NewSMTPSender(cfg config.SMTPConfig, log *logger.Logger) Sender {
	if !cfg.IsEmailEnabled() {
		return NoopSender{}
	}
	s := &SMTPSender{
		host:        cfg.GetSMTPHost(),
		port:        cfg.GetSMTPPort(),
		username:    cfg.GetSMTPUsername(),
		password:    cfg.GetSMTPPassword(),
		fromName:    cfg.GetEmailFromName(),
		fromEmail:   cfg.GetEmailFromAddress(),
		maxAttempts: cfg.GetEmailMaxAttempts(),
		backoff:     defaultBackoff,
		log:         log,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	s.deliver = s.dialAndSend
	return s
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg, err := s.buildMessage(m)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.deliver(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}
		s.log.Warn("email delivery failed, retrying", "to", m.To, "attempt", attempt, "error", lastErr)

		wait := s.backoff * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return fmt.Errorf("smtp send: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("smtp send after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *SMTPSender) buildMessage(m Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("%w: from: %v", errInvalidMessage, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("%w: to: %v", errInvalidMessage, err)
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("%w: reply-to: %v", errInvalidMessage, err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	return msg, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/logger"
)

// Sender transmits one rendered message. Implementations must honour ctx.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	host string
	from string
	opts []mail.Option
}

// NewSMTPSender builds a sender for cfg. Port 465 style implicit TLS is used
// when cfg.UseSSL is set, otherwise STARTTLS is attempted opportunistically.
func NewSMTPSender(cfg config.SMTPConfig, from string, timeout time.Duration) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}
	if cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	// Validate the options once so misconfiguration fails at start-up.
	if _, err := mail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{host: cfg.Host, from: from, opts: opts}, nil
}

// Send dials the relay, delivers one message and closes the connection.
// A fresh client per call keeps concurrent workflows independent.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger.FromContext(ctx).Info("RFQ email (log sender, not delivered)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)))
	return nil
}

// Package email delivers dunning letters over SMTP, with a log-only
// fallback for instances without a mail relay.
package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/pkg/config"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

var _ repository.Notifier = (*SMTPNotifier)(nil)

// SMTPNotifier sends plain-text mail through the configured relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPNotifier builds the notifier from the SMTP configuration.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers the message. gomail has no context support, so the
// deadline is only checked before dialing.
func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}

var _ repository.Notifier = (*LogNotifier)(nil)

// LogNotifier records the letter instead of sending it. Used when SMTP is
// not configured, so dunning runs stay observable in development.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier builds the fallback notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send logs the letter and succeeds.
func (n *LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.log.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("dunning letter (no SMTP relay configured)")
	return nil
}

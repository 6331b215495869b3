package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Sender delivers a notification to a tenant. Implementations are
// fire-and-forget: callers log failures and move on, they never abort the
// business operation that triggered the notification.
type Sender interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// SMTPSender delivers over a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
}

func (s *SMTPSender) Send(_ context.Context, recipient, subject, htmlBody string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.From, recipient, subject, htmlBody,
	)
	return smtp.SendMail(s.Addr, nil, s.From, []string{recipient}, []byte(msg))
}

// LogSender only records the notification. Used in dev and in tests.
type LogSender struct {
	Log *zap.SugaredLogger
}

func (s *LogSender) Send(_ context.Context, recipient, subject, _ string) error {
	s.Log.Infow("notification", "recipient", recipient, "subject", subject)
	return nil
}

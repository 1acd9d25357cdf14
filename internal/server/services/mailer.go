package services

import (
	"context"

	"github.com/dmitrijs2005/useraccounts/internal/logging"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending mail. It is the
// delivery used by the server until an SMTP relay is configured.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	m.logger.Info(ctx, "password reset requested", "email", email, "link", link)
	return nil
}

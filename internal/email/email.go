package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/resend/resend-go/v2"
)

// Sender delivers OTP codes and password reset links.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes emails to the log instead of delivering them. Used with
// ENV=local so OTP codes and reset links can be copied from the server output.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "email not sent (local)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
		Tags:    []resend.Tag{{Name: "category", Value: "auth"}},
	})
	if err != nil {
		return fmt.Errorf("%w: resend: %w", domain.ErrUpstream, err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local and a ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

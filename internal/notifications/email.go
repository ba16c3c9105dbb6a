package notifications

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"
)

var errMissingEmailSettings = errors.New("resend api key and sender address are required")

// ResendSender delivers plain-text email through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey string, from string) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return nil, ErrChannelNotConfigured
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}, nil
}

func (s *ResendSender) Send(ctx context.Context, to string, subject string, text string) error {
	if s == nil || s.client == nil {
		return errMissingEmailSettings
	}
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
		Html:    "<p>" + html.EscapeString(text) + "</p>",
	})
	return err
}

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// EmailConfig holds Postmark delivery configuration.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
}

// ErrFailedToSendEmail wraps delivery failures from the email provider.
var ErrFailedToSendEmail = errors.New("failed to send email")

type postmarkSender struct {
	client *postmark.Client
	config EmailConfig
}

// NewPostmarkSender creates a Postmark-backed EmailSender for billing
// notification emails (trial ending, payment failed).
func NewPostmarkSender(cfg EmailConfig) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" || cfg.PostmarkAccountToken == "" {
		return nil, errors.New("postmark tokens are required")
	}
	if cfg.SenderEmail == "" {
		return nil, errors.New("sender email is required")
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (s *postmarkSender) SendEmail(ctx context.Context, to, subject, body string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.config.SenderEmail,
		To:       to,
		Subject:  subject,
		TextBody: body,
		Tag:      "billing",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

package outbound

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/secrets"
)

type emailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailSender replies by email through Resend.
type EmailSender struct {
	from         string
	subject      string
	apiKeySecret string
	secrets      secrets.Provider
	newClient    func(apiKey string) emailAPI
}

// NewEmailSender builds the sender. The API key is read from apiKeySecret on each
// send; the provider caches it.
func NewEmailSender(from, subject, apiKeySecret string, provider secrets.Provider) *EmailSender {
	return &EmailSender{
		from:         from,
		subject:      subject,
		apiKeySecret: apiKeySecret,
		secrets:      provider,
		newClient: func(apiKey string) emailAPI {
			return resend.NewClient(apiKey).Emails
		},
	}
}

func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, recipient, body string) error {
	apiKey, err := s.secrets.GetSecret(ctx, s.apiKeySecret)
	if err != nil {
		return fmt.Errorf("resend api key: %w", err)
	}
	sent, err := s.newClient(apiKey).SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{recipient},
		Subject: s.subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("resend returned no message id")
	}
	return nil
}

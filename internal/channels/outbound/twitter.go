package outbound

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/secrets"
)

// TwitterSender replies with a v2 direct message to the participant.
type TwitterSender struct {
	baseURL     string
	tokenSecret string
	secrets     secrets.Provider
	client      *http.Client
}

// NewTwitterSender builds the sender against baseURL (https://api.twitter.com).
func NewTwitterSender(baseURL, tokenSecret string, provider secrets.Provider, client *http.Client) *TwitterSender {
	return &TwitterSender{baseURL: baseURL, tokenSecret: tokenSecret, secrets: provider, client: client}
}

func (s *TwitterSender) Channel() domain.Channel { return domain.ChannelTwitter }

func (s *TwitterSender) Send(ctx context.Context, recipient, body string) error {
	token, err := s.secrets.GetSecret(ctx, s.tokenSecret)
	if err != nil {
		return fmt.Errorf("twitter token: %w", err)
	}
	endpoint := fmt.Sprintf("%s/2/dm_conversations/with/%s/messages", s.baseURL, url.PathEscape(recipient))
	return postJSON(ctx, s.client, endpoint,
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"text": body})
}

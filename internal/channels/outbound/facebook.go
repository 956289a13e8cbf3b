package outbound

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/secrets"
)

// GraphConfig locates the Meta Graph API.
type GraphConfig struct {
	BaseURL string
	Version string
}

func (g GraphConfig) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", g.BaseURL, g.Version, path)
}

// FacebookSender replies through the Messenger Send API.
type FacebookSender struct {
	graph       GraphConfig
	tokenSecret string
	secrets     secrets.Provider
	client      *http.Client
}

// NewFacebookSender builds the sender; the page token is read from tokenSecret.
func NewFacebookSender(graph GraphConfig, tokenSecret string, provider secrets.Provider, client *http.Client) *FacebookSender {
	return &FacebookSender{graph: graph, tokenSecret: tokenSecret, secrets: provider, client: client}
}

func (s *FacebookSender) Channel() domain.Channel { return domain.ChannelFacebook }

func (s *FacebookSender) Send(ctx context.Context, recipient, body string) error {
	token, err := s.secrets.GetSecret(ctx, s.tokenSecret)
	if err != nil {
		return fmt.Errorf("facebook page token: %w", err)
	}
	payload := map[string]interface{}{
		"recipient":      map[string]string{"id": recipient},
		"message":        map[string]string{"text": body},
		"messaging_type": "RESPONSE",
	}
	endpoint := s.graph.endpoint("me/messages") + "?access_token=" + url.QueryEscape(token)
	return postJSON(ctx, s.client, endpoint, nil, payload)
}

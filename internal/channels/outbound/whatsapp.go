package outbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/secrets"
)

// WhatsAppSender replies through the WhatsApp Cloud API.
type WhatsAppSender struct {
	graph         GraphConfig
	phoneNumberID string
	tokenSecret   string
	secrets       secrets.Provider
	client        *http.Client
}

// NewWhatsAppSender builds the sender for the business phone number phoneNumberID.
func NewWhatsAppSender(graph GraphConfig, phoneNumberID, tokenSecret string, provider secrets.Provider, client *http.Client) *WhatsAppSender {
	return &WhatsAppSender{
		graph:         graph,
		phoneNumberID: phoneNumberID,
		tokenSecret:   tokenSecret,
		secrets:       provider,
		client:        client,
	}
}

func (s *WhatsAppSender) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (s *WhatsAppSender) Send(ctx context.Context, recipient, body string) error {
	if s.phoneNumberID == "" {
		return errors.New("whatsapp phone number id not configured")
	}
	token, err := s.secrets.GetSecret(ctx, s.tokenSecret)
	if err != nil {
		return fmt.Errorf("whatsapp token: %w", err)
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return postJSON(ctx, s.client, s.graph.endpoint(s.phoneNumberID+"/messages"),
		map[string]string{"Authorization": "Bearer " + token}, payload)
}

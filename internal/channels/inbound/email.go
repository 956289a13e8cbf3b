package inbound

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

type emailPayload struct {
	From      string `json:"from"`
	FromName  string `json:"from_name"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

// EmailNormalizer reads parsed inbound mail posted by the mail provider.
type EmailNormalizer struct{}

func (EmailNormalizer) Name() string            { return "email" }
func (EmailNormalizer) Channel() domain.Channel { return domain.ChannelEmail }

func (EmailNormalizer) Normalize(payload []byte) ([]InboundMessage, error) {
	var body emailPayload
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body.From) == "" {
		return nil, fmt.Errorf("%w: from required", ErrMalformedPayload)
	}
	// "Ana <ana@x.com>" and "ana@x.com" are the same sender.
	addr, err := mail.ParseAddress(strings.TrimSpace(body.From))
	if err != nil {
		return nil, fmt.Errorf("%w: from: %v", ErrMalformedPayload, err)
	}
	from := strings.ToLower(addr.Address)
	name := strings.TrimSpace(body.FromName)
	if name == "" {
		name = addr.Name
	}
	if strings.TrimSpace(body.Text) == "" {
		return nil, nil
	}

	subject := strings.TrimSpace(body.Subject)
	if subject == "" {
		subject = "Email from " + from
	}
	var data map[string]string
	if body.MessageID != "" {
		data = map[string]string{"email_message_id": body.MessageID}
	}
	return []InboundMessage{{
		Channel:           domain.ChannelEmail,
		ChannelIdentity:   from,
		OriginPlatformID:  from,
		CustomerName:      stringPtr(name),
		CustomerEmail:     stringPtr(from),
		Subject:           subject,
		Content:           body.Text,
		Priority:          domain.TicketPriorityMedium,
		ProviderMessageID: body.MessageID,
		ChannelData:       data,
	}}, nil
}

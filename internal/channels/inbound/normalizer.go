package inbound

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// ErrMalformedPayload is returned when a webhook body cannot be decoded.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// InboundMessage is one customer message lifted out of a channel webhook.
type InboundMessage struct {
	Channel           domain.Channel
	ChannelIdentity   string
	OriginPlatformID  string
	CustomerName      *string
	CustomerEmail     *string
	Subject           string
	Content           string
	Priority          domain.TicketPriority
	Tags              []string
	Attachments       []domain.Attachment
	IsBotHandoff      bool
	ForceNewTicket    bool
	ProviderMessageID string
	ChannelData       map[string]string
}

// IdempotencyKey scopes the provider message id to its channel. Empty when the
// provider supplied no id.
func (m InboundMessage) IdempotencyKey() string {
	if m.ProviderMessageID == "" {
		return ""
	}
	return string(m.Channel) + ":" + m.ProviderMessageID
}

// Normalizer converts a channel's webhook body into canonical messages. Events that
// carry no customer message (receipts, statuses, echoes) yield an empty slice.
type Normalizer interface {
	Name() string
	Channel() domain.Channel
	Normalize(payload []byte) ([]InboundMessage, error)
}

// Registry indexes normalizers by name.
type Registry map[string]Normalizer

// NewRegistry registers every normalizer under its Name.
func NewRegistry(normalizers ...Normalizer) Registry {
	r := make(Registry, len(normalizers))
	for _, n := range normalizers {
		r[n.Name()] = n
	}
	return r
}

// Default returns the registry with every built-in adapter.
func Default() Registry {
	return NewRegistry(
		FacebookNormalizer{},
		WhatsAppNormalizer{},
		TwitterNormalizer{},
		ChatbotNormalizer{},
		EmailNormalizer{},
	)
}

func decode(payload []byte, dst interface{}) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package inbound

import (
	"fmt"
	"strings"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

const chatbotHandoffTag = "chatbot_handoff"

type chatbotPayload struct {
	SessionID      string   `json:"session_id"`
	CustomerName   string   `json:"customer_name"`
	CustomerEmail  string   `json:"customer_email"`
	Subject        string   `json:"subject"`
	InitialMessage string   `json:"initial_message"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
}

// ChatbotNormalizer reads escalations from the web chat bot. Every handoff opens a
// new ticket.
type ChatbotNormalizer struct{}

func (ChatbotNormalizer) Name() string            { return "chatbot" }
func (ChatbotNormalizer) Channel() domain.Channel { return domain.ChannelWebChat }

func (ChatbotNormalizer) Normalize(payload []byte) ([]InboundMessage, error) {
	var body chatbotPayload
	if err := decode(payload, &body); err != nil {
		return nil, err
	}

	identity := strings.TrimSpace(body.CustomerEmail)
	if identity == "" {
		identity = strings.TrimSpace(body.SessionID)
	}
	if identity == "" {
		return nil, fmt.Errorf("%w: session_id or customer_email required", ErrMalformedPayload)
	}

	priority := domain.TicketPriority(body.Priority)
	if !priority.Valid() {
		priority = domain.TicketPriorityMedium
	}
	subject := body.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "Chatbot escalation"
	}

	origin := strings.TrimSpace(body.SessionID)
	if origin == "" {
		origin = identity
	}

	return []InboundMessage{{
		Channel:          domain.ChannelWebChat,
		ChannelIdentity:  identity,
		OriginPlatformID: origin,
		CustomerName:     stringPtr(body.CustomerName),
		CustomerEmail:    stringPtr(body.CustomerEmail),
		Subject:          subject,
		Content:          body.InitialMessage,
		Priority:         priority,
		Tags:             append([]string{chatbotHandoffTag}, body.Tags...),
		IsBotHandoff:     true,
		ForceNewTicket:   true,
	}}, nil
}

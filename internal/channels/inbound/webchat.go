package inbound

import (
	"fmt"
	"strings"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

type webChatFrame struct {
	Content       string `json:"content"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	ClientMsgID   string `json:"client_message_id"`
}

// NormalizeWebChat reads one frame a customer sent over a web chat socket. The
// identity matches the chatbot handoff: email when known, otherwise the session.
func NormalizeWebChat(sessionID string, payload []byte) ([]InboundMessage, error) {
	var frame webChatFrame
	if err := decode(payload, &frame); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id required", ErrMalformedPayload)
	}
	if strings.TrimSpace(frame.Content) == "" {
		return nil, nil
	}

	identity := strings.TrimSpace(frame.CustomerEmail)
	if identity == "" {
		identity = sessionID
	}
	var providerID string
	var data map[string]string
	if frame.ClientMsgID != "" {
		providerID = sessionID + "/" + frame.ClientMsgID
		data = map[string]string{"web_chat_message_id": frame.ClientMsgID}
	}
	return []InboundMessage{{
		Channel:           domain.ChannelWebChat,
		ChannelIdentity:   identity,
		OriginPlatformID:  sessionID,
		CustomerName:      stringPtr(frame.CustomerName),
		CustomerEmail:     stringPtr(frame.CustomerEmail),
		Subject:           "Web chat from " + identity,
		Content:           frame.Content,
		Priority:          domain.TicketPriorityMedium,
		ProviderMessageID: providerID,
		ChannelData:       data,
	}}, nil
}

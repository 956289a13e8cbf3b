package outbound

import (
	"context"
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/webchat"
)

// WebChatSender pushes replies to the customer's open browser session.
type WebChatSender struct {
	hub *webchat.Hub
	now func() time.Time
}

// NewWebChatSender builds the sender over hub.
func NewWebChatSender(hub *webchat.Hub) *WebChatSender {
	return &WebChatSender{hub: hub, now: time.Now}
}

func (s *WebChatSender) Channel() domain.Channel { return domain.ChannelWebChat }

func (s *WebChatSender) Send(_ context.Context, sessionID, body string) error {
	return s.hub.Send(sessionID, webchat.Frame{
		Type:      "message",
		Sender:    string(domain.SenderTypeAgent),
		Content:   body,
		Timestamp: s.now().UTC(),
	})
}

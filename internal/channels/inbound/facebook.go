package inbound

import "github.com/spec-kit/omnichannel-support/internal/domain"

type facebookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message *struct {
				MID         string `json:"mid"`
				Text        string `json:"text"`
				IsEcho      bool   `json:"is_echo"`
				Attachments []struct {
					Type    string `json:"type"`
					Payload struct {
						URL string `json:"url"`
					} `json:"payload"`
				} `json:"attachments"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// FacebookNormalizer reads Messenger page webhooks.
type FacebookNormalizer struct{}

func (FacebookNormalizer) Name() string            { return "facebook" }
func (FacebookNormalizer) Channel() domain.Channel { return domain.ChannelFacebook }

func (FacebookNormalizer) Normalize(payload []byte) ([]InboundMessage, error) {
	var body facebookPayload
	if err := decode(payload, &body); err != nil {
		return nil, err
	}
	if body.Object != "page" {
		return nil, nil
	}

	var out []InboundMessage
	for _, entry := range body.Entry {
		for _, event := range entry.Messaging {
			msg := event.Message
			if msg == nil || msg.IsEcho || event.Sender.ID == "" {
				continue
			}
			var attachments []domain.Attachment
			for _, att := range msg.Attachments {
				if att.Payload.URL == "" {
					continue
				}
				attachments = append(attachments, domain.Attachment{URL: att.Payload.URL, FileType: att.Type})
			}
			if msg.Text == "" && len(attachments) == 0 {
				continue
			}
			out = append(out, InboundMessage{
				Channel:           domain.ChannelFacebook,
				ChannelIdentity:   event.Sender.ID,
				OriginPlatformID:  event.Sender.ID,
				Subject:           "Facebook message from " + event.Sender.ID,
				Content:           msg.Text,
				Priority:          domain.TicketPriorityMedium,
				Attachments:       attachments,
				ProviderMessageID: msg.MID,
				ChannelData:       map[string]string{"facebook_message_id": msg.MID},
			})
		}
	}
	return out, nil
}

package inbound

import "github.com/spec-kit/omnichannel-support/internal/domain"

type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WhatsAppNormalizer reads WhatsApp Cloud API webhooks. Status callbacks carry no
// messages and are ignored.
type WhatsAppNormalizer struct{}

func (WhatsAppNormalizer) Name() string            { return "whatsapp" }
func (WhatsAppNormalizer) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (WhatsAppNormalizer) Normalize(payload []byte) ([]InboundMessage, error) {
	var body whatsappPayload
	if err := decode(payload, &body); err != nil {
		return nil, err
	}

	var out []InboundMessage
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.From == "" {
					continue
				}
				content := msg.Text.Body
				if content == "" && msg.Type != "" && msg.Type != "text" {
					content = "[" + msg.Type + " message]"
				}
				out = append(out, InboundMessage{
					Channel:           domain.ChannelWhatsApp,
					ChannelIdentity:   msg.From,
					OriginPlatformID:  msg.From,
					CustomerName:      stringPtr(names[msg.From]),
					Subject:           "WhatsApp message from " + msg.From,
					Content:           content,
					Priority:          domain.TicketPriorityMedium,
					ProviderMessageID: msg.ID,
					ChannelData:       map[string]string{"whatsapp_message_id": msg.ID},
				})
			}
		}
	}
	return out, nil
}

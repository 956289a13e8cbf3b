package inbound

import "github.com/spec-kit/omnichannel-support/internal/domain"

type twitterPayload struct {
	ForUserID           string `json:"for_user_id"`
	DirectMessageEvents []struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		MessageCreate struct {
			SenderID    string `json:"sender_id"`
			MessageData struct {
				Text string `json:"text"`
			} `json:"message_data"`
		} `json:"message_create"`
	} `json:"direct_message_events"`
	Users map[string]struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"users"`
}

// TwitterNormalizer reads Account Activity direct message events. Messages the
// subscribed account sent itself are skipped.
type TwitterNormalizer struct{}

func (TwitterNormalizer) Name() string            { return "twitter" }
func (TwitterNormalizer) Channel() domain.Channel { return domain.ChannelTwitter }

func (TwitterNormalizer) Normalize(payload []byte) ([]InboundMessage, error) {
	var body twitterPayload
	if err := decode(payload, &body); err != nil {
		return nil, err
	}

	var out []InboundMessage
	for _, event := range body.DirectMessageEvents {
		if event.Type != "" && event.Type != "message_create" {
			continue
		}
		sender := event.MessageCreate.SenderID
		if sender == "" || (body.ForUserID != "" && sender == body.ForUserID) {
			continue
		}
		var name *string
		if user, ok := body.Users[sender]; ok {
			name = stringPtr(user.Name)
		}
		out = append(out, InboundMessage{
			Channel:           domain.ChannelTwitter,
			ChannelIdentity:   sender,
			OriginPlatformID:  sender,
			CustomerName:      name,
			Subject:           "Twitter DM from " + sender,
			Content:           event.MessageCreate.MessageData.Text,
			Priority:          domain.TicketPriorityMedium,
			ProviderMessageID: event.ID,
			ChannelData:       map[string]string{"twitter_dm_id": event.ID},
		})
	}
	return out, nil
}

package repository

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// messageRecord is the stored JSONB shape of a timeline entry.
type messageRecord struct {
	ID          string             `json:"message_id"`
	Timestamp   time.Time          `json:"timestamp"`
	SenderType  string             `json:"sender_type"`
	Content     string             `json:"content"`
	ContentType string             `json:"content_type"`
	Visibility  string             `json:"visibility"`
	AgentID     *string            `json:"agent_id,omitempty"`
	Attachments []attachmentRecord `json:"attachments,omitempty"`
	ChannelData map[string]string  `json:"channel_data,omitempty"`
}

type attachmentRecord struct {
	URL       string  `json:"url"`
	FileType  string  `json:"file_type"`
	FileName  *string `json:"file_name,omitempty"`
	SizeBytes *int64  `json:"size_bytes,omitempty"`
}

func toMessageRecord(msg domain.Message) messageRecord {
	rec := messageRecord{
		ID:          msg.ID,
		Timestamp:   msg.Timestamp.UTC(),
		SenderType:  string(msg.SenderType),
		Content:     msg.Content,
		ContentType: msg.ContentType,
		Visibility:  string(msg.Visibility),
		AgentID:     msg.AgentID,
		ChannelData: msg.ChannelData,
	}
	for _, att := range msg.Attachments {
		rec.Attachments = append(rec.Attachments, attachmentRecord{
			URL:       att.URL,
			FileType:  att.FileType,
			FileName:  att.FileName,
			SizeBytes: att.SizeBytes,
		})
	}
	return rec
}

func (r messageRecord) toDomain() domain.Message {
	msg := domain.Message{
		ID:          r.ID,
		Timestamp:   r.Timestamp,
		SenderType:  domain.SenderType(r.SenderType),
		Content:     r.Content,
		ContentType: r.ContentType,
		Visibility:  domain.Visibility(r.Visibility),
		AgentID:     r.AgentID,
		ChannelData: r.ChannelData,
	}
	for _, att := range r.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			URL:       att.URL,
			FileType:  att.FileType,
			FileName:  att.FileName,
			SizeBytes: att.SizeBytes,
		})
	}
	return msg
}

func encodeMessage(msg domain.Message) ([]byte, error) {
	return json.Marshal(toMessageRecord(msg))
}

func encodeTimeline(timeline []domain.Message) ([]byte, error) {
	records := make([]messageRecord, 0, len(timeline))
	for _, msg := range timeline {
		records = append(records, toMessageRecord(msg))
	}
	return json.Marshal(records)
}

func decodeTimeline(raw []byte) ([]domain.Message, error) {
	if len(raw) == 0 {
		return []domain.Message{}, nil
	}
	var records []messageRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	timeline := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		timeline = append(timeline, rec.toDomain())
	}
	return timeline, nil
}

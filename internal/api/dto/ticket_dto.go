package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// SourceBody describes where a ticket came from.
type SourceBody struct {
	Channel          domain.Channel `json:"channel"`
	OriginPlatformID string         `json:"origin_platform_id"`
	IsBotHandoff     bool           `json:"is_bot_handoff"`
}

// CustomerBody is the customer block of a ticket.
type CustomerBody struct {
	InternalID      string  `json:"internal_id,omitempty"`
	Name            *string `json:"name"`
	PrimaryEmail    *string `json:"primary_email"`
	ChannelIdentity string  `json:"channel_identity"`
}

// AttachmentBody references a shared file.
type AttachmentBody struct {
	URL       string  `json:"url"`
	FileType  string  `json:"file_type"`
	FileName  *string `json:"file_name,omitempty"`
	SizeBytes *int64  `json:"size_bytes,omitempty"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Source         SourceBody            `json:"source"`
	Customer       CustomerBody          `json:"customer"`
	Subject        string                `json:"subject"`
	InitialMessage string                `json:"initial_message"`
	Priority       domain.TicketPriority `json:"priority"`
	Tags           []string              `json:"tags"`
}

// UpdateTicketRequest is a partial metadata update. assigned_agent_id distinguishes
// absent from null.
type UpdateTicketRequest struct {
	Status          *domain.TicketStatus   `json:"status"`
	Priority        *domain.TicketPriority `json:"priority"`
	AssignedAgentID OptionalString         `json:"assigned_agent_id"`
	Tags            *[]string              `json:"tags"`
}

// ToDomain converts the request into a domain update.
func (r UpdateTicketRequest) ToDomain() domain.TicketUpdate {
	return domain.TicketUpdate{
		Status:          r.Status,
		Priority:        r.Priority,
		AssignedAgentID: domain.OptionalString(r.AssignedAgentID),
		Tags:            r.Tags,
	}
}

// OptionalString decodes a JSON string field that may be absent, null or set.
type OptionalString domain.OptionalString

// UnmarshalJSON marks the field present; a JSON null leaves Value nil.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// CreateMessageRequest payload. sender_type defaults to agent.
type CreateMessageRequest struct {
	Content     string            `json:"content"`
	SenderType  domain.SenderType `json:"sender_type"`
	AgentID     *string           `json:"agent_id"`
	Visibility  domain.Visibility `json:"visibility"`
	ContentType string            `json:"content_type"`
	Attachments []AttachmentBody  `json:"attachments"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	TicketID        string                `json:"ticket_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	Tags            []string              `json:"tags"`
	Source          SourceBody            `json:"source"`
	Customer        CustomerBody          `json:"customer"`
	Subject         string                `json:"subject"`
	Timeline        []MessageResponse     `json:"timeline"`
}

// MessageResponse is one timeline entry.
type MessageResponse struct {
	MessageID   string            `json:"message_id"`
	Timestamp   time.Time         `json:"timestamp"`
	SenderType  domain.SenderType `json:"sender_type"`
	Content     string            `json:"content"`
	ContentType string            `json:"content_type"`
	Visibility  domain.Visibility `json:"visibility"`
	AgentID     *string           `json:"agent_id"`
	Attachments []AttachmentBody  `json:"attachments"`
	ChannelData map[string]string `json:"channel_specific_data"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Tickets    []TicketResponse `json:"tickets"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// TicketStatusResponse is the polling projection.
type TicketStatusResponse struct {
	TicketID         string              `json:"ticket_id"`
	Status           domain.TicketStatus `json:"status"`
	UpdatedAt        time.Time           `json:"updated_at"`
	HasAgentReply    bool                `json:"has_agent_reply"`
	LastAgentMessage *MessageResponse    `json:"last_agent_message"`
}

// AssignResponse wraps the assigned ticket.
type AssignResponse struct {
	Success bool           `json:"success"`
	Ticket  TicketResponse `json:"ticket"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	timeline := make([]MessageResponse, 0, len(t.Timeline))
	for i := range t.Timeline {
		timeline = append(timeline, NewMessageResponse(&t.Timeline[i]))
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketResponse{
		TicketID:        t.ID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Status:          t.Status,
		Priority:        t.Priority,
		AssignedAgentID: t.AssignedAgentID,
		Tags:            tags,
		Source: SourceBody{
			Channel:          t.Source.Channel,
			OriginPlatformID: t.Source.OriginPlatformID,
			IsBotHandoff:     t.Source.IsBotHandoff,
		},
		Customer: CustomerBody{
			InternalID:      t.Customer.InternalID,
			Name:            t.Customer.Name,
			PrimaryEmail:    t.Customer.PrimaryEmail,
			ChannelIdentity: t.Customer.ChannelIdentity,
		},
		Subject:  t.Subject,
		Timeline: timeline,
	}
}

// NewMessageResponse maps a timeline entry.
func NewMessageResponse(m *domain.Message) MessageResponse {
	attachments := make([]AttachmentBody, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		attachments = append(attachments, AttachmentBody{
			URL:       att.URL,
			FileType:  att.FileType,
			FileName:  att.FileName,
			SizeBytes: att.SizeBytes,
		})
	}
	data := m.ChannelData
	if data == nil {
		data = map[string]string{}
	}
	return MessageResponse{
		MessageID:   m.ID,
		Timestamp:   m.Timestamp,
		SenderType:  m.SenderType,
		Content:     m.Content,
		ContentType: m.ContentType,
		Visibility:  m.Visibility,
		AgentID:     m.AgentID,
		Attachments: attachments,
		ChannelData: data,
	}
}

// ToDomainAttachments converts request attachments.
func ToDomainAttachments(in []AttachmentBody) []domain.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(in))
	for _, att := range in {
		out = append(out, domain.Attachment{
			URL:       att.URL,
			FileType:  att.FileType,
			FileName:  att.FileName,
			SizeBytes: att.SizeBytes,
		})
	}
	return out
}

package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket.created"
	EventTicketUpdated  EventType = "ticket.updated"
	EventTicketAssigned EventType = "ticket.assigned"
	EventMessageAdded   EventType = "message.added"
)

// AllEventTypes lists every type a forwarder should subscribe to.
var AllEventTypes = []EventType{EventTicketCreated, EventTicketUpdated, EventTicketAssigned, EventMessageAdded}

// Family returns the dotted prefix ("ticket", "message").
func (t EventType) Family() string {
	family, _, _ := strings.Cut(string(t), ".")
	return family
}

// Event represents a domain event emitted by services after a mutation commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"event_type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a fresh event id.
func NewEvent(eventType EventType, ticketID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID string                `json:"customer_id"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	Source     domain.Channel        `json:"source"`
	Subject    string                `json:"subject"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Fields          []string              `json:"fields"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedAgentID *string               `json:"assigned_agent_id,omitempty"`
	Tags            []string              `json:"tags"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AgentID string `json:"agent_id"`
}

// MessageAddedPayload payload.
type MessageAddedPayload struct {
	MessageID  string            `json:"message_id"`
	SenderType domain.SenderType `json:"sender_type"`
	Visibility domain.Visibility `json:"visibility"`
	Preview    string            `json:"preview"`
}

const previewLength = 120

// Preview truncates content for event payloads.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}

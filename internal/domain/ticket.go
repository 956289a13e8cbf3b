package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew             TicketStatus = "new"
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusPendingCustomer TicketStatus = "pending_customer"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
)

// OpenStatuses are the non-terminal states eligible to receive inbound messages.
var OpenStatuses = []TicketStatus{TicketStatusNew, TicketStatusOpen, TicketStatusPendingCustomer}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPendingCustomer, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsOpen reports whether the status is non-terminal.
func (s TicketStatus) IsOpen() bool {
	return s == TicketStatusNew || s == TicketStatusOpen || s == TicketStatusPendingCustomer
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:             {TicketStatusOpen, TicketStatusPendingCustomer, TicketStatusResolved, TicketStatusClosed},
	TicketStatusOpen:            {TicketStatusPendingCustomer, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPendingCustomer: {TicketStatusOpen, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:        {TicketStatusOpen, TicketStatusClosed},
	TicketStatusClosed:          {TicketStatusOpen},
}

// CanTransition reports whether a ticket may move from current to next.
// Re-applying the current status is always allowed.
func CanTransition(current, next TicketStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Channel is an external communication surface.
type Channel string

const (
	ChannelWebChat   Channel = "web_chat"
	ChannelEmail     Channel = "email"
	ChannelFacebook  Channel = "facebook"
	ChannelTwitter   Channel = "twitter"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWebChat, ChannelEmail, ChannelFacebook, ChannelTwitter, ChannelWhatsApp, ChannelInstagram:
		return true
	}
	return false
}

// Source records where a ticket came from. It is captured once at creation and is the
// routing key for every outbound reply on the ticket.
type Source struct {
	Channel          Channel
	OriginPlatformID string
	IsBotHandoff     bool
}

// CustomerSnapshot is the resolved customer's identity at ticket-creation time.
type CustomerSnapshot struct {
	InternalID      string
	Name            *string
	PrimaryEmail    *string
	ChannelIdentity string
}

// Ticket is the aggregate for a support case.
type Ticket struct {
	ID              string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Status          TicketStatus
	Priority        TicketPriority
	AssignedAgentID *string
	Tags            []string
	Source          Source
	Customer        CustomerSnapshot
	Subject         string
	Timeline        []Message
}

// LastAgentMessage scans the timeline from the end for the most recent agent entry.
func (t *Ticket) LastAgentMessage() *Message {
	for i := len(t.Timeline) - 1; i >= 0; i-- {
		if t.Timeline[i].SenderType == SenderTypeAgent {
			msg := t.Timeline[i]
			return &msg
		}
	}
	return nil
}

// LastMessage returns the newest timeline entry, or nil for an empty timeline.
func (t *Ticket) LastMessage() *Message {
	if len(t.Timeline) == 0 {
		return nil
	}
	msg := t.Timeline[len(t.Timeline)-1]
	return &msg
}

// OpenKey identifies the single open-ticket slot for a (channel, channel identity) pair.
func OpenKey(channel Channel, channelIdentity string) string {
	return string(channel) + ":" + channelIdentity
}

// Clone returns a deep copy so callers cannot alias stored state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedAgentID = cloneString(t.AssignedAgentID)
	c.Customer.Name = cloneString(t.Customer.Name)
	c.Customer.PrimaryEmail = cloneString(t.Customer.PrimaryEmail)
	if t.Tags != nil {
		c.Tags = append([]string{}, t.Tags...)
	}
	c.Timeline = make([]Message, len(t.Timeline))
	for i := range t.Timeline {
		c.Timeline[i] = t.Timeline[i].Clone()
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

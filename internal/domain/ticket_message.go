package domain

import "time"

// SenderType indicates who authored a timeline entry.
type SenderType string

const (
	SenderTypeCustomer SenderType = "customer"
	SenderTypeAgent    SenderType = "agent"
	SenderTypeBot      SenderType = "bot"
	SenderTypeSystem   SenderType = "system"
)

// Valid reports whether s is a known sender type.
func (s SenderType) Valid() bool {
	switch s {
	case SenderTypeCustomer, SenderTypeAgent, SenderTypeBot, SenderTypeSystem:
		return true
	}
	return false
}

// Visibility controls whether a message may leave the system.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityInternal
}

const (
	ContentTypeText     = "text"
	ContentTypeEventLog = "event_log"
)

// Message is one append-only timeline entry.
type Message struct {
	ID          string
	Timestamp   time.Time
	SenderType  SenderType
	Content     string
	ContentType string
	Visibility  Visibility
	AgentID     *string
	Attachments []Attachment
	ChannelData map[string]string
}

// Attachment references a file shared in a message.
type Attachment struct {
	URL       string
	FileType  string
	FileName  *string
	SizeBytes *int64
}

// Deliverable reports whether the message should be routed to the customer's channel.
func (m Message) Deliverable() bool {
	return m.SenderType == SenderTypeAgent && m.Visibility == VisibilityPublic
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	c := m
	c.AgentID = cloneString(m.AgentID)
	if m.Attachments != nil {
		c.Attachments = make([]Attachment, len(m.Attachments))
		for i, att := range m.Attachments {
			c.Attachments[i] = att
			c.Attachments[i].FileName = cloneString(att.FileName)
			if att.SizeBytes != nil {
				size := *att.SizeBytes
				c.Attachments[i].SizeBytes = &size
			}
		}
	}
	if m.ChannelData != nil {
		c.ChannelData = make(map[string]string, len(m.ChannelData))
		for k, v := range m.ChannelData {
			c.ChannelData[k] = v
		}
	}
	return c
}

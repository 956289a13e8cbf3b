package domain

import "time"

// Customer anchors an identity across tickets. One channel identity per record: a
// customer is scoped to the channel handle of first contact.
type Customer struct {
	InternalID      string
	ChannelIdentity string
	Name            *string
	PrimaryEmail    *string
	Channels        []Channel
	CreatedAt       time.Time
}

// Snapshot captures the customer for embedding in a ticket.
func (c *Customer) Snapshot() CustomerSnapshot {
	return CustomerSnapshot{
		InternalID:      c.InternalID,
		Name:            cloneString(c.Name),
		PrimaryEmail:    cloneString(c.PrimaryEmail),
		ChannelIdentity: c.ChannelIdentity,
	}
}

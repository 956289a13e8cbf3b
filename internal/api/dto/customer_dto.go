package dto

import (
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// CustomerResponse is the wire form of a customer.
type CustomerResponse struct {
	InternalID      string           `json:"internal_id"`
	ChannelIdentity string           `json:"channel_identity"`
	Name            *string          `json:"name"`
	PrimaryEmail    *string          `json:"primary_email"`
	Channels        []domain.Channel `json:"channels"`
	CreatedAt       time.Time        `json:"created_at"`
}

// CustomerTicketsResponse lists a customer's tickets.
type CustomerTicketsResponse struct {
	CustomerID string           `json:"customer_id"`
	Tickets    []TicketResponse `json:"tickets"`
	Count      int              `json:"count"`
}

// NewCustomerResponse maps a domain customer.
func NewCustomerResponse(c *domain.Customer) CustomerResponse {
	channels := c.Channels
	if channels == nil {
		channels = []domain.Channel{}
	}
	return CustomerResponse{
		InternalID:      c.InternalID,
		ChannelIdentity: c.ChannelIdentity,
		Name:            c.Name,
		PrimaryEmail:    c.PrimaryEmail,
		Channels:        channels,
		CreatedAt:       c.CreatedAt,
	}
}

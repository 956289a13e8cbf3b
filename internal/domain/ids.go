package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NewTicketID returns a fresh opaque ticket identifier.
func NewTicketID() string {
	return "tkt_" + randomHex(12)
}

// NewMessageID returns a fresh timeline message identifier.
func NewMessageID() string {
	return "msg_" + randomHex(12)
}

// NewCustomerID returns a fresh internal customer identifier.
func NewCustomerID() string {
	return "cust_" + randomHex(8)
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusNew, TicketStatusOpen, true},
		{TicketStatusNew, TicketStatusClosed, true},
		{TicketStatusOpen, TicketStatusNew, false},
		{TicketStatusPendingCustomer, TicketStatusOpen, true},
		{TicketStatusResolved, TicketStatusOpen, true},
		{TicketStatusResolved, TicketStatusPendingCustomer, false},
		{TicketStatusClosed, TicketStatusOpen, true},
		{TicketStatusClosed, TicketStatusResolved, false},
		{TicketStatusClosed, TicketStatusClosed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusIsOpen(t *testing.T) {
	for _, s := range OpenStatuses {
		assert.True(t, s.IsOpen(), s)
	}
	assert.False(t, TicketStatusResolved.IsOpen())
	assert.False(t, TicketStatusClosed.IsOpen())
}

func TestLastAgentMessageScansFromEnd(t *testing.T) {
	ticket := &Ticket{Timeline: []Message{
		{ID: "m1", SenderType: SenderTypeCustomer},
		{ID: "m2", SenderType: SenderTypeAgent},
		{ID: "m3", SenderType: SenderTypeAgent},
		{ID: "m4", SenderType: SenderTypeSystem},
	}}

	last := ticket.LastAgentMessage()
	if assert.NotNil(t, last) {
		assert.Equal(t, "m3", last.ID)
	}

	empty := &Ticket{Timeline: []Message{{SenderType: SenderTypeCustomer}}}
	assert.Nil(t, empty.LastAgentMessage())
}

func TestTicketUpdateApplyLeavesTimeline(t *testing.T) {
	agent := "agent_1"
	ticket := &Ticket{
		Status:          TicketStatusNew,
		Priority:        TicketPriorityLow,
		AssignedAgentID: &agent,
		Timeline:        []Message{{ID: "m1"}},
	}
	status := TicketStatusOpen
	tags := []string{"vip"}
	update := TicketUpdate{Status: &status, AssignedAgentID: NullString(), Tags: &tags}

	assert.False(t, update.IsEmpty())
	assert.Equal(t, []string{"status", "assigned_agent_id", "tags"}, update.Fields())

	update.Apply(ticket)
	assert.Equal(t, TicketStatusOpen, ticket.Status)
	assert.Equal(t, TicketPriorityLow, ticket.Priority)
	assert.Nil(t, ticket.AssignedAgentID)
	assert.Equal(t, []string{"vip"}, ticket.Tags)
	assert.Len(t, ticket.Timeline, 1)

	assert.True(t, TicketUpdate{}.IsEmpty())
}

func TestCloneDoesNotAlias(t *testing.T) {
	name := "Ana"
	original := &Ticket{
		Customer: CustomerSnapshot{Name: &name},
		Tags:     []string{"a"},
		Timeline: []Message{{ID: "m1", ChannelData: map[string]string{"k": "v"}, Timestamp: time.Now()}},
	}
	c := original.Clone()
	*c.Customer.Name = "Bea"
	c.Tags[0] = "b"
	c.Timeline[0].ChannelData["k"] = "changed"
	c.Timeline = append(c.Timeline, Message{ID: "m2"})

	assert.Equal(t, "Ana", *original.Customer.Name)
	assert.Equal(t, "a", original.Tags[0])
	assert.Equal(t, "v", original.Timeline[0].ChannelData["k"])
	assert.Len(t, original.Timeline, 1)
}

func TestIDFormats(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewTicketID(), "tkt_"))
	assert.Len(t, NewTicketID(), 16)
	assert.Len(t, NewMessageID(), 16)
	assert.Len(t, NewCustomerID(), 13)
	assert.NotEqual(t, NewTicketID(), NewTicketID())
}

func TestMessageDeliverable(t *testing.T) {
	assert.True(t, Message{SenderType: SenderTypeAgent, Visibility: VisibilityPublic}.Deliverable())
	assert.False(t, Message{SenderType: SenderTypeAgent, Visibility: VisibilityInternal}.Deliverable())
	assert.False(t, Message{SenderType: SenderTypeCustomer, Visibility: VisibilityPublic}.Deliverable())
}

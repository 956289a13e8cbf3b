package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

func TestUpdateTicketRequestAssignedAgentTriState(t *testing.T) {
	var absent UpdateTicketRequest
	require.NoError(t, json.Unmarshal([]byte(`{"priority":"high"}`), &absent))
	update := absent.ToDomain()
	assert.False(t, update.AssignedAgentID.Set)
	require.NotNil(t, update.Priority)
	assert.Equal(t, domain.TicketPriorityHigh, *update.Priority)

	var cleared UpdateTicketRequest
	require.NoError(t, json.Unmarshal([]byte(`{"assigned_agent_id":null}`), &cleared))
	assert.True(t, cleared.AssignedAgentID.Set)
	assert.Nil(t, cleared.AssignedAgentID.Value)
	assert.False(t, cleared.ToDomain().IsEmpty())

	var set UpdateTicketRequest
	require.NoError(t, json.Unmarshal([]byte(`{"assigned_agent_id":"agent_7","tags":["a"]}`), &set))
	require.NotNil(t, set.AssignedAgentID.Value)
	assert.Equal(t, "agent_7", *set.AssignedAgentID.Value)
	require.NotNil(t, set.Tags)
	assert.Equal(t, []string{"a"}, *set.Tags)

	var empty UpdateTicketRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.True(t, empty.ToDomain().IsEmpty())

	var bad UpdateTicketRequest
	assert.Error(t, json.Unmarshal([]byte(`{"assigned_agent_id":7}`), &bad))
}

func TestNewTicketResponseShape(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{
		ID:        "tkt_abc",
		CreatedAt: now,
		UpdatedAt: now,
		Status:    domain.TicketStatusNew,
		Priority:  domain.TicketPriorityMedium,
		Source:    domain.Source{Channel: domain.ChannelEmail, OriginPlatformID: "a@example.com"},
		Customer:  domain.CustomerSnapshot{InternalID: "cust_1", ChannelIdentity: "a@example.com"},
		Subject:   "Hi",
		Timeline: []domain.Message{{
			ID: "msg_1", Timestamp: now, SenderType: domain.SenderTypeCustomer,
			Content: "hello", ContentType: domain.ContentTypeText, Visibility: domain.VisibilityPublic,
		}},
	}

	raw, err := json.Marshal(NewTicketResponse(ticket))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "tkt_abc", decoded["ticket_id"])
	assert.Equal(t, []interface{}{}, decoded["tags"])
	assert.Nil(t, decoded["assigned_agent_id"])
	source := decoded["source"].(map[string]interface{})
	assert.Equal(t, "email", source["channel"])
	timeline := decoded["timeline"].([]interface{})
	require.Len(t, timeline, 1)
	first := timeline[0].(map[string]interface{})
	assert.Equal(t, "msg_1", first["message_id"])
	assert.Equal(t, []interface{}{}, first["attachments"])
}

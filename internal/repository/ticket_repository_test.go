package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

func TestBuildMetadataUpdate(t *testing.T) {
	now := time.Now()
	closed := domain.TicketStatusClosed
	tags := []string{"vip"}

	query, args := buildMetadataUpdate("tkt_1", domain.TicketUpdate{
		Status:          &closed,
		AssignedAgentID: domain.NullString(),
		Tags:            &tags,
	}, now)

	assert.Contains(t, query, "status=$2")
	assert.Contains(t, query, "open_key=NULL")
	assert.Contains(t, query, "assigned_agent_id=$3")
	assert.Contains(t, query, "tags=$4")
	assert.Contains(t, query, "updated_at=GREATEST(updated_at, $5)")
	assert.NotContains(t, query, "priority=")
	assert.NotContains(t, query, "timeline =")
	require.Len(t, args, 5)
	assert.Equal(t, "tkt_1", args[0])
	assert.Nil(t, args[2])
}

func TestBuildMetadataUpdateKeepsSlotForOpenStatus(t *testing.T) {
	open := domain.TicketStatusPendingCustomer
	query, _ := buildMetadataUpdate("tkt_1", domain.TicketUpdate{Status: &open}, time.Now())
	assert.NotContains(t, query, "open_key")
}

func TestBuildListWhere(t *testing.T) {
	where, args := buildListWhere(TicketFilter{})
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)

	status := domain.TicketStatusOpen
	agent := "agent_1"
	where, args = buildListWhere(TicketFilter{Status: &status, AssignedAgentID: &agent})
	assert.Equal(t, "1=1 AND status=$1 AND assigned_agent_id=$2", where)
	assert.Equal(t, []any{"open", "agent_1"}, args)
}

func TestTimelineCodecRoundTrip(t *testing.T) {
	agent := "agent_1"
	name := "invoice.pdf"
	size := int64(2048)
	timeline := []domain.Message{{
		ID:          "msg_1",
		Timestamp:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		SenderType:  domain.SenderTypeAgent,
		Content:     "see attached",
		ContentType: domain.ContentTypeText,
		Visibility:  domain.VisibilityPublic,
		AgentID:     &agent,
		Attachments: []domain.Attachment{{URL: "https://files/x", FileType: "application/pdf", FileName: &name, SizeBytes: &size}},
		ChannelData: map[string]string{"email_message_id": "<abc@x>"},
	}}

	raw, err := encodeTimeline(timeline)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"message_id":"msg_1"`))

	decoded, err := decodeTimeline(raw)
	require.NoError(t, err)
	assert.Equal(t, timeline, decoded)

	empty, err := decodeTimeline(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23505"}), ErrAlreadyExists)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestBuildMetadataUpdateGuardsExpectedStatus(t *testing.T) {
	resolved := domain.TicketStatusResolved
	open := domain.TicketStatusOpen
	query, args := buildMetadataUpdate("tkt_1", domain.TicketUpdate{Status: &resolved, ExpectedStatus: &open}, time.Now())

	assert.Contains(t, query, "WHERE ticket_id=$1 AND status=$4 RETURNING")
	require.Len(t, args, 4)
	assert.Equal(t, "open", args[3])
}

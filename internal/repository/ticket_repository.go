package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// TicketFilter captures agent dashboard search parameters.
type TicketFilter struct {
	Status          *domain.TicketStatus
	AssignedAgentID *string
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// CreateUnlessOpen inserts ticket while claiming the open slot of its
	// (channel, channel identity). When another open ticket already holds the slot,
	// that ticket is returned with created=false and nothing is inserted.
	CreateUnlessOpen(ctx context.Context, ticket *domain.Ticket) (stored *domain.Ticket, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateMetadata(ctx context.Context, id string, update domain.TicketUpdate, now time.Time) (*domain.Ticket, error)
	AppendMessage(ctx context.Context, id string, msg domain.Message, now time.Time) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	FindOpen(ctx context.Context, channel domain.Channel, channelIdentity string) (*domain.Ticket, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Ticket, error)
}

const ticketColumns = `ticket_id, created_at, updated_at, status, priority, assigned_agent_id, tags,
               source_channel, origin_platform_id, is_bot_handoff,
               customer_id, customer_name, customer_email, customer_channel_identity,
               subject, timeline`

const openStatusList = `('new','open','pending_customer')`

// claimAttempts bounds the insert/lookup loop when the slot holder closes between
// the conflicting insert and the lookup.
const claimAttempts = 3

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.insert(ctx, ticket, nil)
}

func (r *ticketRepository) CreateUnlessOpen(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, bool, error) {
	key := domain.OpenKey(ticket.Source.Channel, ticket.Customer.ChannelIdentity)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		err := r.insert(ctx, ticket, &key)
		if err == nil {
			return ticket, true, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, false, err
		}

		holder, err := r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE open_key=$1`, key)
		if err == nil {
			return holder, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("claim open slot %s: %w", key, ErrAlreadyExists)
}

func (r *ticketRepository) insert(ctx context.Context, ticket *domain.Ticket, openKey *string) error {
	timeline, err := encodeTimeline(ticket.Timeline)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (ticket_id, created_at, updated_at, status, priority, assigned_agent_id, tags,
            source_channel, origin_platform_id, is_bot_handoff,
            customer_id, customer_name, customer_email, customer_channel_identity,
            subject, timeline, open_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.AssignedAgentID,
		nonNilTags(ticket.Tags),
		string(ticket.Source.Channel),
		ticket.Source.OriginPlatformID,
		ticket.Source.IsBotHandoff,
		ticket.Customer.InternalID,
		ticket.Customer.Name,
		ticket.Customer.PrimaryEmail,
		ticket.Customer.ChannelIdentity,
		ticket.Subject,
		timeline,
		openKey,
	)
	return translate(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id=$1`, id)
}

func (r *ticketRepository) UpdateMetadata(ctx context.Context, id string, update domain.TicketUpdate, now time.Time) (*domain.Ticket, error) {
	query, args := buildMetadataUpdate(id, update, now)
	ticket, err := r.fetchSingle(ctx, query, args...)
	if errors.Is(err, ErrNotFound) && update.ExpectedStatus != nil {
		// No row matched: either the ticket is gone or its status moved on.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return ticket, err
}

// buildMetadataUpdate renders an UPDATE touching only the fields present in update.
// A status outside the open set releases the open slot. ExpectedStatus adds a
// status guard to the WHERE clause.
func buildMetadataUpdate(id string, update domain.TicketUpdate, now time.Time) (string, []any) {
	args := []any{id}
	sets := []string{}

	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
		if !update.Status.IsOpen() {
			sets = append(sets, "open_key=NULL")
		}
	}
	if update.Priority != nil {
		args = append(args, string(*update.Priority))
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	if update.AssignedAgentID.Set {
		args = append(args, update.AssignedAgentID.Value)
		sets = append(sets, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if update.Tags != nil {
		args = append(args, nonNilTags(*update.Tags))
		sets = append(sets, fmt.Sprintf("tags=$%d", len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at=GREATEST(updated_at, $%d)", len(args)))

	where := "ticket_id=$1"
	if update.ExpectedStatus != nil {
		args = append(args, string(*update.ExpectedStatus))
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}

	query := fmt.Sprintf("UPDATE tickets SET %s WHERE %s RETURNING %s", strings.Join(sets, ", "), where, ticketColumns)
	return query, args
}

func (r *ticketRepository) AppendMessage(ctx context.Context, id string, msg domain.Message, now time.Time) (*domain.Ticket, error) {
	payload, err := encodeMessage(msg)
	if err != nil {
		return nil, err
	}
	query := `
        UPDATE tickets
        SET timeline = timeline || jsonb_build_array($2::jsonb),
            updated_at = GREATEST(updated_at, $3)
        WHERE ticket_id=$1
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, id, string(payload), now)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tickets WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, ticket_id ASC LIMIT $%d OFFSET $%d",
		ticketColumns, where, len(args)-1, len(args))

	tickets, err := r.fetchMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func buildListWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) FindOpen(ctx context.Context, channel domain.Channel, channelIdentity string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE source_channel=$1 AND customer_channel_identity=$2 AND status IN ` + openStatusList + `
        ORDER BY updated_at DESC, ticket_id ASC
        LIMIT 1`
	return r.fetchSingle(ctx, query, string(channel), channelIdentity)
}

func (r *ticketRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE customer_id=$1
        ORDER BY created_at DESC, ticket_id ASC
        LIMIT $2`
	return r.fetchMany(ctx, query, customerID, limit)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		status   string
		priority string
		channel  string
		timeline []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&status,
		&priority,
		&ticket.AssignedAgentID,
		&ticket.Tags,
		&channel,
		&ticket.Source.OriginPlatformID,
		&ticket.Source.IsBotHandoff,
		&ticket.Customer.InternalID,
		&ticket.Customer.Name,
		&ticket.Customer.PrimaryEmail,
		&ticket.Customer.ChannelIdentity,
		&ticket.Subject,
		&timeline,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	ticket.Priority = domain.TicketPriority(priority)
	ticket.Source.Channel = domain.Channel(channel)
	messages, err := decodeTimeline(timeline)
	if err != nil {
		return nil, fmt.Errorf("decode timeline for %s: %w", ticket.ID, err)
	}
	ticket.Timeline = messages
	return &ticket, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

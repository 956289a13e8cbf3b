package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

// CustomerRepository persists customer identities.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByChannelIdentity(ctx context.Context, channelIdentity string) (*domain.Customer, error)
	// CreateIfAbsent inserts customer unless a record with the same channel identity
	// exists, in which case the stored record is returned with created=false.
	CreateIfAbsent(ctx context.Context, customer *domain.Customer) (stored *domain.Customer, created bool, err error)
}

const customerColumns = `internal_id, channel_identity, name, primary_email, channels, created_at`

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository builds the Postgres customer store.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE internal_id=$1`, id)
}

func (r *customerRepository) GetByChannelIdentity(ctx context.Context, channelIdentity string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `SELECT `+customerColumns+` FROM customers WHERE channel_identity=$1`, channelIdentity)
}

func (r *customerRepository) CreateIfAbsent(ctx context.Context, customer *domain.Customer) (*domain.Customer, bool, error) {
	channels := make([]string, 0, len(customer.Channels))
	for _, ch := range customer.Channels {
		channels = append(channels, string(ch))
	}

	const query = `
        INSERT INTO customers (internal_id, channel_identity, name, primary_email, channels, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (channel_identity) DO NOTHING
        RETURNING internal_id`
	var id string
	err := r.pool.QueryRow(ctx, query,
		customer.InternalID,
		customer.ChannelIdentity,
		customer.Name,
		customer.PrimaryEmail,
		channels,
		customer.CreatedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return customer, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.GetByChannelIdentity(ctx, customer.ChannelIdentity)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, translate(err)
	}
}

func (r *customerRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	var (
		customer domain.Customer
		channels []string
	)
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&customer.InternalID,
		&customer.ChannelIdentity,
		&customer.Name,
		&customer.PrimaryEmail,
		&channels,
		&customer.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	for _, ch := range channels {
		customer.Channels = append(customer.Channels, domain.Channel(ch))
	}
	return &customer, nil
}

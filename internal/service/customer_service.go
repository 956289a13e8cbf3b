package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/repository"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

const (
	defaultCustomerTicketLimit = 50
	maxCustomerTicketLimit     = 100
	// customerIDAttempts allows one fresh id after an internal id collision.
	customerIDAttempts = 2
)

// CustomerService resolves channel identities to customer records.
type CustomerService struct {
	customers repository.CustomerRepository
	tickets   repository.TicketRepository
	now       func() time.Time
	newID     func() string
}

// ResolveInput identifies a contact on a channel.
type ResolveInput struct {
	ChannelIdentity string
	Channel         domain.Channel
	Name            *string
	Email           *string
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository, tickets repository.TicketRepository) *CustomerService {
	return &CustomerService{customers: customers, tickets: tickets, now: utcNow, newID: domain.NewCustomerID}
}

// Resolve returns the customer owning the channel identity, creating it on first
// contact. An existing record is returned as stored; later name or email values are
// not merged into it.
func (s *CustomerService) Resolve(ctx context.Context, input ResolveInput) (*domain.Customer, error) {
	identity := strings.TrimSpace(input.ChannelIdentity)
	if identity == "" {
		return nil, apperrors.NewInvalidRequest("channel_identity is required", nil)
	}

	existing, err := s.customers.GetByChannelIdentity(ctx, identity)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewPersistenceError("lookup customer", err)
	}

	candidate := &domain.Customer{
		ChannelIdentity: identity,
		Name:            input.Name,
		PrimaryEmail:    input.Email,
		CreatedAt:       s.now(),
	}
	if input.Channel != "" {
		candidate.Channels = []domain.Channel{input.Channel}
	}

	for attempt := 1; ; attempt++ {
		candidate.InternalID = s.newID()
		stored, _, err := s.customers.CreateIfAbsent(ctx, candidate)
		if errors.Is(err, repository.ErrAlreadyExists) && attempt < customerIDAttempts {
			continue
		}
		if err != nil {
			return nil, apperrors.NewPersistenceError("create customer", err)
		}
		return stored, nil
	}
}

// Get fetches a customer by internal id.
func (s *CustomerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get customer", "customer", id, err)
	}
	return customer, nil
}

// ListTickets returns the customer's tickets, newest first.
func (s *CustomerService) ListTickets(ctx context.Context, customerID string, limit int) ([]domain.Ticket, error) {
	if limit == 0 {
		limit = defaultCustomerTicketLimit
	}
	if limit < 1 || limit > maxCustomerTicketLimit {
		return nil, apperrors.NewInvalidRequest("limit must be between 1 and 100", map[string]any{"limit": limit})
	}
	if _, err := s.Get(ctx, customerID); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list customer tickets", err)
	}
	return tickets, nil
}

// storeError maps repository failures onto the domain error taxonomy.
func storeError(op, resource, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.NewPersistenceError(op, err)
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

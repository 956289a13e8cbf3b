package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/omnichannel-support/internal/domain"
)

var (
	_ TicketRepository   = (*MemoryTicketRepository)(nil)
	_ CustomerRepository = (*MemoryCustomerRepository)(nil)
)

// MemoryTicketRepository keeps tickets in process memory. It backs local runs
// without POSTGRES_DSN and the service tests.
type MemoryTicketRepository struct {
	mu        sync.RWMutex
	tickets   map[string]*domain.Ticket
	openSlots map[string]string
}

// NewMemoryTicketRepository returns an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets:   make(map[string]*domain.Ticket),
		openSlots: make(map[string]string),
	}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; ok {
		return ErrAlreadyExists
	}
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) CreateUnlessOpen(_ context.Context, ticket *domain.Ticket) (*domain.Ticket, bool, error) {
	key := domain.OpenKey(ticket.Source.Channel, ticket.Customer.ChannelIdentity)

	r.mu.Lock()
	defer r.mu.Unlock()
	if holderID, ok := r.openSlots[key]; ok {
		if holder, ok := r.tickets[holderID]; ok && holder.Status.IsOpen() {
			return holder.Clone(), false, nil
		}
		delete(r.openSlots, key)
	}
	if _, ok := r.tickets[ticket.ID]; ok {
		return nil, false, ErrAlreadyExists
	}
	r.tickets[ticket.ID] = ticket.Clone()
	r.openSlots[key] = ticket.ID
	return ticket, true, nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) UpdateMetadata(_ context.Context, id string, update domain.TicketUpdate, now time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.ExpectedStatus != nil && ticket.Status != *update.ExpectedStatus {
		return nil, ErrConflict
	}
	update.Apply(ticket)
	touch(ticket, now)
	if !ticket.Status.IsOpen() {
		key := domain.OpenKey(ticket.Source.Channel, ticket.Customer.ChannelIdentity)
		if r.openSlots[key] == id {
			delete(r.openSlots, key)
		}
	}
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) AppendMessage(_ context.Context, id string, msg domain.Message, now time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket.Timeline = append(ticket.Timeline, msg.Clone())
	touch(ticket, now)
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	matched := r.collect(func(t *domain.Ticket) bool {
		if filter.Status != nil && t.Status != *filter.Status {
			return false
		}
		if filter.AssignedAgentID != nil && (t.AssignedAgentID == nil || *t.AssignedAgentID != *filter.AssignedAgentID) {
			return false
		}
		return true
	})
	sortByRecency(matched)

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryTicketRepository) FindOpen(_ context.Context, channel domain.Channel, channelIdentity string) (*domain.Ticket, error) {
	matched := r.collect(func(t *domain.Ticket) bool {
		return t.Source.Channel == channel && t.Customer.ChannelIdentity == channelIdentity && t.Status.IsOpen()
	})
	if len(matched) == 0 {
		return nil, ErrNotFound
	}
	sortByRecency(matched)
	return &matched[0], nil
}

func (r *MemoryTicketRepository) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Ticket, error) {
	matched := r.collect(func(t *domain.Ticket) bool {
		return t.Customer.InternalID == customerID
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryTicketRepository) collect(keep func(*domain.Ticket) bool) []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if keep(ticket) {
			result = append(result, *ticket.Clone())
		}
	}
	return result
}

func sortByRecency(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].UpdatedAt.Equal(tickets[j].UpdatedAt) {
			return tickets[i].UpdatedAt.After(tickets[j].UpdatedAt)
		}
		return tickets[i].ID < tickets[j].ID
	})
}

func touch(ticket *domain.Ticket, now time.Time) {
	if now.After(ticket.UpdatedAt) {
		ticket.UpdatedAt = now
	}
}

// MemoryCustomerRepository keeps customers in process memory.
type MemoryCustomerRepository struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Customer
	byIdentity map[string]string
}

// NewMemoryCustomerRepository returns an empty store.
func NewMemoryCustomerRepository() *MemoryCustomerRepository {
	return &MemoryCustomerRepository{
		byID:       make(map[string]*domain.Customer),
		byIdentity: make(map[string]string),
	}
}

func (r *MemoryCustomerRepository) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	customer, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCustomer(customer), nil
}

func (r *MemoryCustomerRepository) GetByChannelIdentity(_ context.Context, channelIdentity string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdentity[channelIdentity]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCustomer(r.byID[id]), nil
}

func (r *MemoryCustomerRepository) CreateIfAbsent(_ context.Context, customer *domain.Customer) (*domain.Customer, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byIdentity[customer.ChannelIdentity]; ok {
		return cloneCustomer(r.byID[id]), false, nil
	}
	if _, ok := r.byID[customer.InternalID]; ok {
		return nil, false, ErrAlreadyExists
	}
	r.byID[customer.InternalID] = cloneCustomer(customer)
	r.byIdentity[customer.ChannelIdentity] = customer.InternalID
	return customer, true, nil
}

func cloneCustomer(c *domain.Customer) *domain.Customer {
	out := *c
	if c.Name != nil {
		name := *c.Name
		out.Name = &name
	}
	if c.PrimaryEmail != nil {
		email := *c.PrimaryEmail
		out.PrimaryEmail = &email
	}
	out.Channels = append([]domain.Channel(nil), c.Channels...)
	return &out
}

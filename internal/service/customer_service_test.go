package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

func TestResolveCreatesOnFirstContact(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	email := "ada@example.com"
	customer, err := f.customer.Resolve(ctx, ResolveInput{
		ChannelIdentity: " ada@example.com ",
		Channel:         domain.ChannelEmail,
		Email:           &email,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", customer.ChannelIdentity)
	assert.Equal(t, []domain.Channel{domain.ChannelEmail}, customer.Channels)

	again, err := f.customer.Resolve(ctx, ResolveInput{ChannelIdentity: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, customer.InternalID, again.InternalID)
	require.NotNil(t, again.PrimaryEmail)
	assert.Equal(t, email, *again.PrimaryEmail)
}

func TestResolveRequiresIdentity(t *testing.T) {
	f := newFixture()
	_, err := f.customer.Resolve(context.Background(), ResolveInput{ChannelIdentity: "   "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))
}

func TestResolveConcurrentFirstContactCreatesOneCustomer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const callers = 30
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			customer, err := f.customer.Resolve(ctx, ResolveInput{ChannelIdentity: "psid-77", Channel: domain.ChannelFacebook})
			if assert.NoError(t, err) {
				ids[i] = customer.InternalID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCustomerTickets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.service.CreateTicket(ctx, createInputFor(domain.ChannelEmail, "a@example.com"))
	require.NoError(t, err)
	_, err = f.service.CreateTicket(ctx, createInputFor(domain.ChannelEmail, "b@example.com"))
	require.NoError(t, err)

	customer, err := f.customer.Get(ctx, first.Customer.InternalID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", customer.ChannelIdentity)

	tickets, err := f.customer.ListTickets(ctx, customer.InternalID, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, first.ID, tickets[0].ID)

	_, err = f.customer.ListTickets(ctx, customer.InternalID, 500)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))

	_, err = f.customer.Get(ctx, "cust_missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = f.customer.ListTickets(ctx, "cust_missing", 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRecipientFor(t *testing.T) {
	email := "ada@example.com"
	ticket := &domain.Ticket{
		Source:   domain.Source{Channel: domain.ChannelEmail, OriginPlatformID: "sess-1"},
		Customer: domain.CustomerSnapshot{PrimaryEmail: &email, ChannelIdentity: "sess-1"},
	}
	assert.Equal(t, "ada@example.com", recipientFor(ticket))

	ticket.Source.OriginPlatformID = "other@example.com"
	assert.Equal(t, "other@example.com", recipientFor(ticket))

	ticket.Source = domain.Source{Channel: domain.ChannelWhatsApp, OriginPlatformID: "15550001"}
	assert.Equal(t, "15550001", recipientFor(ticket))
}

func TestResolveRetriesOnInternalIDCollision(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ids := []string{"cust_dup", "cust_dup", "cust_fresh"}
	f.customer.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := f.customer.Resolve(ctx, ResolveInput{ChannelIdentity: "psid-1", Channel: domain.ChannelFacebook})
	require.NoError(t, err)
	assert.Equal(t, "cust_dup", first.InternalID)

	second, err := f.customer.Resolve(ctx, ResolveInput{ChannelIdentity: "psid-2", Channel: domain.ChannelFacebook})
	require.NoError(t, err)
	assert.Equal(t, "cust_fresh", second.InternalID)
	assert.Equal(t, "psid-2", second.ChannelIdentity)
}

package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/events"
	"github.com/spec-kit/omnichannel-support/internal/worker"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

// JobRunner accepts side-effect jobs; worker.Pool is the production runner.
type JobRunner interface {
	Submit(job worker.Job) bool
}

// Deliverer sends an agent reply to the customer's channel.
type Deliverer interface {
	Send(ctx context.Context, channel domain.Channel, recipient, body string) bool
}

var errDeliveryFailed = errors.New("outbound delivery reported failure")

// sideEffects issues event publication and outbound delivery after a mutation has
// committed. Neither can fail the mutation.
type sideEffects struct {
	dispatcher events.Dispatcher
	jobs       JobRunner
	deliverer  Deliverer
	logger     *zap.Logger
}

func (s sideEffects) publish(event events.Event) {
	if s.dispatcher == nil || s.jobs == nil {
		return
	}
	s.jobs.Submit(worker.Job{
		Name: "publish " + string(event.Type),
		Run: func(ctx context.Context) error {
			if err := s.dispatcher.Publish(ctx, event); err != nil {
				return apperrors.NewUpstreamDeliveryError("event bus", err)
			}
			return nil
		},
	})
}

func (s sideEffects) deliver(ticket *domain.Ticket, msg domain.Message) {
	if !msg.Deliverable() || s.deliverer == nil || s.jobs == nil {
		return
	}
	channel := ticket.Source.Channel
	recipient := recipientFor(ticket)
	s.jobs.Submit(worker.Job{
		Name: "deliver " + string(channel),
		Run: func(ctx context.Context) error {
			if !s.deliverer.Send(ctx, channel, recipient, msg.Content) {
				return apperrors.NewUpstreamDeliveryError(string(channel), errDeliveryFailed)
			}
			return nil
		},
	})
}

// recipientFor picks the routing id captured at creation. Email tickets created from
// a non-address origin fall back to the customer's address.
func recipientFor(ticket *domain.Ticket) string {
	recipient := ticket.Source.OriginPlatformID
	if ticket.Source.Channel != domain.ChannelEmail || strings.Contains(recipient, "@") {
		return recipient
	}
	if ticket.Customer.PrimaryEmail != nil && *ticket.Customer.PrimaryEmail != "" {
		return *ticket.Customer.PrimaryEmail
	}
	return ticket.Customer.ChannelIdentity
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/channels/inbound"
	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/idempotency"
	"github.com/spec-kit/omnichannel-support/internal/observability"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

// Intake outcomes, also used as metric labels.
const (
	OutcomeCreated   = "created"
	OutcomeAppended  = "appended"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

const attachmentPlaceholder = "[attachment]"

// Intent is what the intake decided to do with one inbound message.
type Intent interface {
	isIntent()
}

// IntentNewTicket opens a ticket. Exclusive creation yields to an open ticket held by
// the same customer on the same channel.
type IntentNewTicket struct {
	Input     CreateTicketInput
	Exclusive bool
}

// IntentAppendMessage adds a customer message to an existing open ticket.
type IntentAppendMessage struct {
	TicketID string
	Message  AddMessageInput
}

func (IntentNewTicket) isIntent()     {}
func (IntentAppendMessage) isIntent() {}

// IntakeResult reports what happened to one inbound message.
type IntakeResult struct {
	TicketID  string
	MessageID string
	Outcome   string
}

// IntakeService turns normalized inbound messages into ticket mutations.
type IntakeService struct {
	tickets *TicketService
	seen    idempotency.Store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	Tickets        *TicketService
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		tickets: deps.Tickets,
		seen:    deps.Idempotency,
		ttl:     deps.IdempotencyTTL,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Process handles each message in order. Messages rejected as invalid are reported
// and skipped; any other failure stops processing and is returned so the provider
// retries the delivery.
func (s *IntakeService) Process(ctx context.Context, messages []inbound.InboundMessage) ([]IntakeResult, error) {
	results := make([]IntakeResult, 0, len(messages))
	for _, msg := range messages {
		result, err := s.processOne(ctx, msg)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *IntakeService) processOne(ctx context.Context, msg inbound.InboundMessage) (IntakeResult, error) {
	key := msg.IdempotencyKey()
	if key != "" && s.seen != nil && s.ttl > 0 {
		claimed, err := s.seen.Claim(ctx, key, s.ttl)
		switch {
		case err != nil:
			s.logger.Warn("idempotency claim failed", zap.String("key", key), zap.Error(err))
			key = ""
		case !claimed:
			s.record(msg.Channel, OutcomeDuplicate)
			return IntakeResult{Outcome: OutcomeDuplicate}, nil
		}
	} else {
		key = ""
	}

	result, err := s.apply(ctx, msg)
	if err != nil {
		s.release(key)
		if apperrors.HasCode(err, apperrors.CodeInvalidRequest) {
			s.logger.Info("inbound message rejected",
				zap.String("channel", string(msg.Channel)),
				zap.String("channel_identity", msg.ChannelIdentity),
				zap.Error(err))
			s.record(msg.Channel, OutcomeRejected)
			return IntakeResult{Outcome: OutcomeRejected}, nil
		}
		return IntakeResult{}, err
	}
	s.record(msg.Channel, result.Outcome)
	return result, nil
}

func (s *IntakeService) apply(ctx context.Context, msg inbound.InboundMessage) (IntakeResult, error) {
	intent, err := s.Decide(ctx, msg)
	if err != nil {
		return IntakeResult{}, err
	}

	switch it := intent.(type) {
	case IntentAppendMessage:
		return s.append(ctx, it.TicketID, it.Message)
	case IntentNewTicket:
		if !it.Exclusive {
			ticket, err := s.tickets.CreateTicket(ctx, it.Input)
			if err != nil {
				return IntakeResult{}, err
			}
			return createdResult(ticket), nil
		}
		ticket, created, err := s.tickets.CreateTicketUnlessOpen(ctx, it.Input)
		if err != nil {
			return IntakeResult{}, err
		}
		if created {
			return createdResult(ticket), nil
		}
		// Another delivery opened the ticket first.
		return s.append(ctx, ticket.ID, customerMessage(msg))
	}
	return IntakeResult{}, apperrors.NewInternalError(fmt.Errorf("unknown intake intent %T", intent))
}

// Decide picks the intent for msg: chatbot handoffs always open a ticket, other
// messages join the customer's open ticket on the same channel when one exists.
func (s *IntakeService) Decide(ctx context.Context, msg inbound.InboundMessage) (Intent, error) {
	if !msg.ForceNewTicket {
		open, err := s.tickets.FindOpenTicket(ctx, msg.ChannelIdentity, msg.Channel)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return IntentAppendMessage{TicketID: open.ID, Message: customerMessage(msg)}, nil
		}
	}
	return IntentNewTicket{Input: createInput(msg), Exclusive: !msg.ForceNewTicket}, nil
}

func (s *IntakeService) append(ctx context.Context, ticketID string, input AddMessageInput) (IntakeResult, error) {
	ticket, err := s.tickets.AddMessage(ctx, ticketID, input)
	if err != nil {
		return IntakeResult{}, err
	}
	result := IntakeResult{TicketID: ticket.ID, Outcome: OutcomeAppended}
	if last := ticket.LastMessage(); last != nil {
		result.MessageID = last.ID
	}
	return result, nil
}

func (s *IntakeService) release(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.seen.Release(ctx, key); err != nil {
		s.logger.Warn("idempotency release failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *IntakeService) record(channel domain.Channel, outcome string) {
	s.metrics.RecordIntake(string(channel), outcome)
}

func createdResult(ticket *domain.Ticket) IntakeResult {
	result := IntakeResult{TicketID: ticket.ID, Outcome: OutcomeCreated}
	if len(ticket.Timeline) > 0 {
		result.MessageID = ticket.Timeline[0].ID
	}
	return result
}

func messageContent(msg inbound.InboundMessage) string {
	if strings.TrimSpace(msg.Content) == "" && len(msg.Attachments) > 0 {
		return attachmentPlaceholder
	}
	return msg.Content
}

func createInput(msg inbound.InboundMessage) CreateTicketInput {
	return CreateTicketInput{
		Source: domain.Source{
			Channel:          msg.Channel,
			OriginPlatformID: msg.OriginPlatformID,
			IsBotHandoff:     msg.IsBotHandoff,
		},
		Customer: CustomerInput{
			Name:            msg.CustomerName,
			PrimaryEmail:    msg.CustomerEmail,
			ChannelIdentity: msg.ChannelIdentity,
		},
		Subject:        msg.Subject,
		InitialMessage: messageContent(msg),
		Priority:       msg.Priority,
		Tags:           msg.Tags,
		Attachments:    msg.Attachments,
		ChannelData:    msg.ChannelData,
	}
}

func customerMessage(msg inbound.InboundMessage) AddMessageInput {
	return AddMessageInput{
		SenderType:  domain.SenderTypeCustomer,
		Content:     messageContent(msg),
		ContentType: domain.ContentTypeText,
		Visibility:  domain.VisibilityPublic,
		Attachments: msg.Attachments,
		ChannelData: msg.ChannelData,
	}
}

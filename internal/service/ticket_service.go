package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/events"
	"github.com/spec-kit/omnichannel-support/internal/repository"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	updateAttempts  = 3
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets   repository.TicketRepository
	customers *CustomerService
	effects   sideEffects
	logger    *zap.Logger
	now       func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Customers  *CustomerService
	Dispatcher events.Dispatcher
	Jobs       JobRunner
	Deliverer  Deliverer
	Logger     *zap.Logger
}

// CustomerInput describes the contact on a new ticket.
type CustomerInput struct {
	Name            *string
	PrimaryEmail    *string
	ChannelIdentity string
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Source         domain.Source
	Customer       CustomerInput
	Subject        string
	InitialMessage string
	Priority       domain.TicketPriority
	Tags           []string
	// Attachments and ChannelData are stamped on the initial message.
	Attachments []domain.Attachment
	ChannelData map[string]string
}

// AddMessageInput describes a timeline append.
type AddMessageInput struct {
	SenderType  domain.SenderType
	Content     string
	ContentType string
	Visibility  domain.Visibility
	AgentID     *string
	Attachments []domain.Attachment
	ChannelData map[string]string
}

// ListTicketsInput describes the agent dashboard query.
type ListTicketsInput struct {
	Status          *domain.TicketStatus
	AssignedAgentID *string
	Page            int
	PageSize        int
}

// TicketPage is one page of tickets.
type TicketPage struct {
	Tickets    []domain.Ticket
	TotalCount int
	Page       int
	PageSize   int
}

// TicketStatusView is the lightweight polling view used by the chatbot.
type TicketStatusView struct {
	TicketID         string
	Status           domain.TicketStatus
	UpdatedAt        time.Time
	HasAgentReply    bool
	LastAgentMessage *domain.Message
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		customers: deps.Customers,
		effects: sideEffects{
			dispatcher: deps.Dispatcher,
			jobs:       deps.Jobs,
			deliverer:  deps.Deliverer,
			logger:     logger,
		},
		logger: logger,
		now:    utcNow,
	}
}

// CreateTicket resolves the customer and stores a new ticket holding the initial
// customer message.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	ticket, err := s.prepareTicket(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceError("create ticket", err)
	}
	s.publishCreated(ticket)
	return ticket, nil
}

// CreateTicketUnlessOpen stores a new ticket unless the customer already has an open
// ticket on the same channel, in which case that ticket is returned with
// created=false and nothing is written.
func (s *TicketService) CreateTicketUnlessOpen(ctx context.Context, input CreateTicketInput) (*domain.Ticket, bool, error) {
	ticket, err := s.prepareTicket(ctx, input)
	if err != nil {
		return nil, false, err
	}
	stored, created, err := s.tickets.CreateUnlessOpen(ctx, ticket)
	if err != nil {
		return nil, false, apperrors.NewPersistenceError("create ticket", err)
	}
	if created {
		s.publishCreated(stored)
	}
	return stored, created, nil
}

func (s *TicketService) prepareTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	customer, err := s.customers.Resolve(ctx, ResolveInput{
		ChannelIdentity: input.Customer.ChannelIdentity,
		Channel:         input.Source.Channel,
		Name:            input.Customer.Name,
		Email:           input.Customer.PrimaryEmail,
	})
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	return &domain.Ticket{
		ID:        domain.NewTicketID(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    domain.TicketStatusNew,
		Priority:  priority,
		Tags:      tags,
		Source:    input.Source,
		Customer:  customer.Snapshot(),
		Subject:   strings.TrimSpace(input.Subject),
		Timeline: []domain.Message{{
			ID:          domain.NewMessageID(),
			Timestamp:   now,
			SenderType:  domain.SenderTypeCustomer,
			Content:     input.InitialMessage,
			ContentType: domain.ContentTypeText,
			Visibility:  domain.VisibilityPublic,
			Attachments: input.Attachments,
			ChannelData: input.ChannelData,
		}},
	}, nil
}

func validateCreate(input CreateTicketInput) error {
	var missing []string
	if input.Source.Channel == "" {
		missing = append(missing, "source.channel")
	}
	if strings.TrimSpace(input.Source.OriginPlatformID) == "" {
		missing = append(missing, "source.origin_platform_id")
	}
	if strings.TrimSpace(input.Customer.ChannelIdentity) == "" {
		missing = append(missing, "customer.channel_identity")
	}
	if strings.TrimSpace(input.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(input.InitialMessage) == "" {
		missing = append(missing, "initial_message")
	}
	if len(missing) > 0 {
		return apperrors.NewInvalidRequest("missing required fields", map[string]any{"fields": missing})
	}
	if !input.Source.Channel.Valid() {
		return apperrors.NewInvalidRequest("unknown channel", map[string]any{"channel": input.Source.Channel})
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return apperrors.NewInvalidRequest("unknown priority", map[string]any{"priority": input.Priority})
	}
	return nil
}

func (s *TicketService) publishCreated(ticket *domain.Ticket) {
	s.effects.publish(events.NewEvent(events.EventTicketCreated, ticket.ID, ticket.CreatedAt, events.TicketCreatedPayload{
		CustomerID: ticket.Customer.InternalID,
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		Source:     ticket.Source.Channel,
		Subject:    ticket.Subject,
	}))
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError("get ticket", "ticket", ticketID, err)
	}
	return ticket, nil
}

// UpdateTicket applies a partial metadata update. The timeline is never touched.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) (*domain.Ticket, error) {
	if update.IsEmpty() {
		return nil, apperrors.NewInvalidRequest("no updates provided", nil)
	}
	if err := validateUpdate(update); err != nil {
		return nil, err
	}

	ticket, err := s.applyUpdate(ctx, ticketID, update)
	if err != nil {
		return nil, err
	}

	s.effects.publish(events.NewEvent(events.EventTicketUpdated, ticket.ID, ticket.UpdatedAt, events.TicketUpdatedPayload{
		Fields:          update.Fields(),
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		AssignedAgentID: ticket.AssignedAgentID,
		Tags:            ticket.Tags,
	}))
	return ticket, nil
}

// applyUpdate writes update. A status change is checked against the stored status
// and written only while that status still holds; when another writer moved the
// status in between, the check is repeated against the new value.
func (s *TicketService) applyUpdate(ctx context.Context, ticketID string, update domain.TicketUpdate) (*domain.Ticket, error) {
	for attempt := 1; ; attempt++ {
		if update.Status != nil {
			current, err := s.GetTicket(ctx, ticketID)
			if err != nil {
				return nil, err
			}
			if !domain.CanTransition(current.Status, *update.Status) {
				return nil, apperrors.NewInvalidRequest("invalid status transition", map[string]any{
					"from": current.Status,
					"to":   *update.Status,
				})
			}
			expected := current.Status
			update.ExpectedStatus = &expected
		}

		ticket, err := s.tickets.UpdateMetadata(ctx, ticketID, update, s.now())
		if errors.Is(err, repository.ErrConflict) && attempt < updateAttempts {
			continue
		}
		if err != nil {
			return nil, storeError("update ticket", "ticket", ticketID, err)
		}
		return ticket, nil
	}
}

func validateUpdate(update domain.TicketUpdate) error {
	if update.Status != nil && !update.Status.Valid() {
		return apperrors.NewInvalidRequest("unknown status", map[string]any{"status": *update.Status})
	}
	if update.Priority != nil && !update.Priority.Valid() {
		return apperrors.NewInvalidRequest("unknown priority", map[string]any{"priority": *update.Priority})
	}
	if v := update.AssignedAgentID.Value; update.AssignedAgentID.Set && v != nil && strings.TrimSpace(*v) == "" {
		return apperrors.NewInvalidRequest("assigned_agent_id must not be blank", nil)
	}
	return nil
}

// AddMessage appends a message to the ticket timeline. Public agent messages are
// routed to the customer's channel after the append commits.
func (s *TicketService) AddMessage(ctx context.Context, ticketID string, input AddMessageInput) (*domain.Ticket, error) {
	msg, err := s.buildMessage(input)
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.AppendMessage(ctx, ticketID, msg, msg.Timestamp)
	if err != nil {
		return nil, storeError("append message", "ticket", ticketID, err)
	}

	s.effects.publish(events.NewEvent(events.EventMessageAdded, ticket.ID, msg.Timestamp, events.MessageAddedPayload{
		MessageID:  msg.ID,
		SenderType: msg.SenderType,
		Visibility: msg.Visibility,
		Preview:    events.Preview(msg.Content),
	}))
	s.effects.deliver(ticket, msg)
	return ticket, nil
}

func (s *TicketService) buildMessage(input AddMessageInput) (domain.Message, error) {
	if !input.SenderType.Valid() {
		return domain.Message{}, apperrors.NewInvalidRequest("unknown sender_type", map[string]any{"sender_type": input.SenderType})
	}
	if strings.TrimSpace(input.Content) == "" && len(input.Attachments) == 0 {
		return domain.Message{}, apperrors.NewInvalidRequest("content is required", nil)
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	if !visibility.Valid() {
		return domain.Message{}, apperrors.NewInvalidRequest("unknown visibility", map[string]any{"visibility": visibility})
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeText
	}

	return domain.Message{
		ID:          domain.NewMessageID(),
		Timestamp:   s.now(),
		SenderType:  input.SenderType,
		Content:     input.Content,
		ContentType: contentType,
		Visibility:  visibility,
		AgentID:     input.AgentID,
		Attachments: input.Attachments,
		ChannelData: input.ChannelData,
	}, nil
}

// GetStatus returns the polling view of a ticket.
func (s *TicketService) GetStatus(ctx context.Context, ticketID string) (*TicketStatusView, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	last := ticket.LastAgentMessage()
	return &TicketStatusView{
		TicketID:         ticket.ID,
		Status:           ticket.Status,
		UpdatedAt:        ticket.UpdatedAt,
		HasAgentReply:    last != nil,
		LastAgentMessage: last,
	}, nil
}

// AssignTicket sets the assigned agent and records an internal event-log entry.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, agentID string) (*domain.Ticket, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, apperrors.NewInvalidRequest("agent_id is required", nil)
	}

	assigned, err := s.tickets.UpdateMetadata(ctx, ticketID, domain.TicketUpdate{AssignedAgentID: domain.SetString(agentID)}, s.now())
	if err != nil {
		return nil, storeError("assign ticket", "ticket", ticketID, err)
	}
	s.effects.publish(events.NewEvent(events.EventTicketAssigned, ticketID, s.now(), events.TicketAssignedPayload{AgentID: agentID}))

	// The assignment is already committed; a missing log entry does not undo it.
	ticket, err := s.AddMessage(ctx, ticketID, AddMessageInput{
		SenderType:  domain.SenderTypeSystem,
		Content:     fmt.Sprintf("Ticket assigned to agent %s", agentID),
		ContentType: domain.ContentTypeEventLog,
		Visibility:  domain.VisibilityInternal,
	})
	if err != nil {
		s.logger.Warn("assignment saved without timeline entry",
			zap.String("ticket_id", ticketID),
			zap.String("agent_id", agentID),
			zap.Error(err))
		return assigned, nil
	}
	return ticket, nil
}

// ListTickets returns a page of tickets, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, input ListTicketsInput) (*TicketPage, error) {
	page := input.Page
	if page == 0 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return nil, apperrors.NewInvalidRequest("page must be >= 1", map[string]any{"page": page})
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return nil, apperrors.NewInvalidRequest("page_size must be between 1 and 100", map[string]any{"page_size": pageSize})
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewInvalidRequest("unknown status", map[string]any{"status": *input.Status})
	}

	tickets, total, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:          input.Status,
		AssignedAgentID: input.AssignedAgentID,
		Limit:           pageSize,
		Offset:          (page - 1) * pageSize,
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError("list tickets", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return &TicketPage{Tickets: tickets, TotalCount: total, Page: page, PageSize: pageSize}, nil
}

// FindOpenTicket returns the customer's open ticket on channel, or nil when none.
func (s *TicketService) FindOpenTicket(ctx context.Context, channelIdentity string, channel domain.Channel) (*domain.Ticket, error) {
	ticket, err := s.tickets.FindOpen(ctx, channel, channelIdentity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("find open ticket", err)
	}
	return ticket, nil
}

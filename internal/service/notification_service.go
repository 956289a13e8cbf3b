package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/events"
)

// NotificationService writes an audit line for every domain event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleEvent)
	}
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Time("timestamp", event.Timestamp),
	}
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		fields = append(fields,
			zap.String("customer_id", payload.CustomerID),
			zap.String("source", string(payload.Source)),
			zap.String("priority", string(payload.Priority)))
	case events.TicketUpdatedPayload:
		fields = append(fields,
			zap.Strings("fields", payload.Fields),
			zap.String("status", string(payload.Status)))
	case events.TicketAssignedPayload:
		fields = append(fields, zap.String("agent_id", payload.AgentID))
	case events.MessageAddedPayload:
		fields = append(fields,
			zap.String("message_id", payload.MessageID),
			zap.String("sender_type", string(payload.SenderType)),
			zap.String("visibility", string(payload.Visibility)))
	}
	n.logger.Info("domain event", fields...)
	return nil
}

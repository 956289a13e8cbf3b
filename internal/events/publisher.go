package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher delivers events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// StreamConfig names the Redis streams events are appended to.
type StreamConfig struct {
	TicketsStream  string
	MessagesStream string
	MaxLen         int64
}

// StreamPublisher appends events to Redis Streams: ticket.* to the tickets stream,
// message.* to the messages stream. Consumers read with XREADGROUP.
type StreamPublisher struct {
	client *redis.Client
	cfg    StreamConfig
}

// NewStreamPublisher builds a publisher over client.
func NewStreamPublisher(client *redis.Client, cfg StreamConfig) *StreamPublisher {
	return &StreamPublisher{client: client, cfg: cfg}
}

// Stream picks the destination stream for an event type.
func (p *StreamPublisher) Stream(eventType EventType) string {
	if eventType.Family() == "message" {
		return p.cfg.MessagesStream
	}
	return p.cfg.TicketsStream
}

func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	values, err := streamValues(event)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: p.Stream(event.Type),
		Values: values,
	}
	if p.cfg.MaxLen > 0 {
		args.MaxLen = p.cfg.MaxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

func streamValues(event Event) (map[string]interface{}, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return map[string]interface{}{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"ticket_id":  event.TicketID,
		"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
		"payload":    string(payload),
	}, nil
}

// LogPublisher writes events to the log when no bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher builds the fallback publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Time("timestamp", event.Timestamp))
	return nil
}

// Forward subscribes publisher to every event type on dispatcher.
func Forward(dispatcher Dispatcher, publisher Publisher) {
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, publisher.Publish)
	}
}

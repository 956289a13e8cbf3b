package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/observability"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

var (
	// ErrUnsupportedChannel is returned when no sender is registered for a channel.
	ErrUnsupportedChannel = errors.New("unsupported outbound channel")
	// ErrMissingRecipient is returned for an empty routing id.
	ErrMissingRecipient = errors.New("missing recipient")
)

// Sender delivers a reply through one external channel API.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, recipient, body string) error
}

// Router dispatches replies to the sender registered for the ticket's channel.
// Each send is independent; failures are logged and never retried.
type Router struct {
	senders map[domain.Channel]Sender
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRouter registers senders by their channel.
func NewRouter(logger *zap.Logger, metrics *observability.Metrics, senders ...Sender) *Router {
	r := &Router{
		senders: make(map[domain.Channel]Sender, len(senders)),
		logger:  logger,
		metrics: metrics,
	}
	for _, s := range senders {
		r.senders[s.Channel()] = s
	}
	return r
}

// Supports reports whether a sender is registered for channel.
func (r *Router) Supports(channel domain.Channel) bool {
	_, ok := r.senders[channel]
	return ok
}

// Send delivers body to recipient on channel and reports success.
func (r *Router) Send(ctx context.Context, channel domain.Channel, recipient, body string) bool {
	err := r.send(ctx, channel, recipient, body)
	r.metrics.RecordDelivery(string(channel), err == nil)
	if err != nil {
		r.logger.Warn("outbound delivery failed",
			zap.String("channel", string(channel)),
			zap.String("recipient", recipient),
			zap.Error(apperrors.NewUpstreamDeliveryError(string(channel), err)))
		return false
	}
	r.logger.Info("outbound message delivered",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient))
	return true
}

func (r *Router) send(ctx context.Context, channel domain.Channel, recipient, body string) error {
	sender, ok := r.senders[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}
	if recipient == "" {
		return ErrMissingRecipient
	}
	return sender.Send(ctx, recipient, body)
}

// postJSON sends payload and treats any non-2xx answer as a failure.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

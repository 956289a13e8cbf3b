package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/channels/inbound"
	"github.com/spec-kit/omnichannel-support/internal/service"
	"github.com/spec-kit/omnichannel-support/internal/webchat"
)

// WebChatHandler serves browser chat sessions over websockets. Agent replies reach
// the browser through the hub; customer frames are fed to intake.
type WebChatHandler struct {
	hub     *webchat.Hub
	intake  *service.IntakeService
	logger  *zap.Logger
	timeout time.Duration
}

// NewWebChatHandler constructs handler.
func NewWebChatHandler(hub *webchat.Hub, intake *service.IntakeService, logger *zap.Logger, timeout time.Duration) *WebChatHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebChatHandler{hub: hub, intake: intake, logger: logger, timeout: timeout}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebChatHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Session GET /ws/chat/:session_id.
func (h *WebChatHandler) Session() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sessionID := conn.Params("session_id")
		writer := &lockedConn{conn: conn}
		detach := h.hub.Register(sessionID, writer)
		defer detach()

		h.logger.Info("web chat connected",
			zap.String("session_id", sessionID),
			zap.Int("connections", h.hub.Connected(sessionID)))
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				h.logger.Info("web chat closed", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			frame := h.handleFrame(sessionID, payload)
			if err := writer.WriteJSON(frame); err != nil {
				h.logger.Warn("web chat ack failed", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	})
}

func (h *WebChatHandler) handleFrame(sessionID string, payload []byte) webchat.Frame {
	now := time.Now().UTC()
	messages, err := inbound.NormalizeWebChat(sessionID, payload)
	if err != nil {
		return webchat.Frame{Type: "error", Sender: "system", Content: "malformed message", Timestamp: now}
	}
	if len(messages) == 0 {
		return webchat.Frame{Type: "ack", Sender: "system", Timestamp: now}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	results, err := h.intake.Process(ctx, messages)
	if err != nil {
		h.logger.Error("web chat intake failed", zap.String("session_id", sessionID), zap.Error(err))
		return webchat.Frame{Type: "error", Sender: "system", Content: "message not delivered, please retry", Timestamp: now}
	}
	frame := webchat.Frame{Type: "ack", Sender: "system", Timestamp: now}
	if len(results) > 0 {
		frame.Content = results[0].TicketID
	}
	return frame
}

// lockedConn serializes writes from the read loop and the hub.
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedConn) WriteJSON(v interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(v)
}

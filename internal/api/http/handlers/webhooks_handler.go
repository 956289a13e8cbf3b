package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/api/dto"
	"github.com/spec-kit/omnichannel-support/internal/channels/inbound"
	"github.com/spec-kit/omnichannel-support/internal/config"
	"github.com/spec-kit/omnichannel-support/internal/service"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

const (
	hubSignatureHeader     = "X-Hub-Signature-256"
	twitterSignatureHeader = "X-Twitter-Webhooks-Signature"
)

// WebhooksHandler receives platform webhooks and feeds them to intake.
type WebhooksHandler struct {
	intake      *service.IntakeService
	normalizers inbound.Registry
	cfg         config.ChannelsConfig
	logger      *zap.Logger
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(intake *service.IntakeService, normalizers inbound.Registry, cfg config.ChannelsConfig, logger *zap.Logger) *WebhooksHandler {
	return &WebhooksHandler{intake: intake, normalizers: normalizers, cfg: cfg, logger: logger}
}

// VerifyFacebook GET /webhooks/facebook.
func (h *WebhooksHandler) VerifyFacebook(c *fiber.Ctx) error {
	return verifyHubChallenge(c, h.cfg.FacebookVerifyToken)
}

// VerifyWhatsApp GET /webhooks/whatsapp.
func (h *WebhooksHandler) VerifyWhatsApp(c *fiber.Ctx) error {
	return verifyHubChallenge(c, h.cfg.WhatsAppVerifyToken)
}

func verifyHubChallenge(c *fiber.Ctx, expected string) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if expected == "" || mode != "subscribe" || !hmac.Equal([]byte(token), []byte(expected)) {
		return apperrors.NewForbidden("verification failed")
	}
	return c.SendString(c.Query("hub.challenge"))
}

// TwitterCRC GET /webhooks/twitter answers the account activity CRC check.
func (h *WebhooksHandler) TwitterCRC(c *fiber.Ctx) error {
	if h.cfg.TwitterConsumerSecret == "" {
		return apperrors.NewForbidden("twitter webhook not configured")
	}
	crc := c.Query("crc_token")
	if crc == "" {
		return apperrors.NewInvalidRequest("crc_token required", nil)
	}
	return c.JSON(fiber.Map{"response_token": "sha256=" + base64.StdEncoding.EncodeToString(hmacSHA256(h.cfg.TwitterConsumerSecret, []byte(crc)))})
}

// Facebook POST /webhooks/facebook.
func (h *WebhooksHandler) Facebook(c *fiber.Ctx) error {
	if err := verifyHexSignature(c.Get(hubSignatureHeader), h.cfg.FacebookAppSecret, c.Body()); err != nil {
		return err
	}
	return h.receive(c, "facebook")
}

// WhatsApp POST /webhooks/whatsapp.
func (h *WebhooksHandler) WhatsApp(c *fiber.Ctx) error {
	if err := verifyHexSignature(c.Get(hubSignatureHeader), h.cfg.WhatsAppAppSecret, c.Body()); err != nil {
		return err
	}
	return h.receive(c, "whatsapp")
}

// Twitter POST /webhooks/twitter.
func (h *WebhooksHandler) Twitter(c *fiber.Ctx) error {
	if secret := h.cfg.TwitterConsumerSecret; secret != "" {
		got := strings.TrimPrefix(c.Get(twitterSignatureHeader), "sha256=")
		want := base64.StdEncoding.EncodeToString(hmacSHA256(secret, c.Body()))
		if !hmac.Equal([]byte(got), []byte(want)) {
			return apperrors.NewUnauthorized("invalid webhook signature")
		}
	}
	return h.receive(c, "twitter")
}

// Email POST /webhooks/email.
func (h *WebhooksHandler) Email(c *fiber.Ctx) error {
	return h.receive(c, "email")
}

// receive acknowledges malformed or empty payloads so the platform does not retry;
// only a failed store write surfaces as 5xx.
func (h *WebhooksHandler) receive(c *fiber.Ctx, name string) error {
	normalizer, ok := h.normalizers[name]
	if !ok {
		return apperrors.NewNotFound("webhook", map[string]any{"channel": name})
	}
	messages, err := normalizer.Normalize(c.Body())
	if err != nil {
		h.logger.Warn("dropping webhook payload", zap.String("channel", name), zap.Error(err))
		return c.JSON(dto.WebhookAck{Status: "ok"})
	}
	if len(messages) == 0 {
		return c.JSON(dto.WebhookAck{Status: "ok"})
	}

	results, err := h.intake.Process(c.UserContext(), messages)
	if err != nil {
		return err
	}
	for _, result := range results {
		h.logger.Info("webhook message processed",
			zap.String("channel", name),
			zap.String("outcome", result.Outcome),
			zap.String("ticket_id", result.TicketID))
	}
	return c.JSON(dto.WebhookAck{Status: "ok"})
}

// Chatbot POST /webhooks/chatbot receives bot-to-human escalations. Unlike platform
// webhooks the caller is our own bot, so bad payloads get a 400.
func (h *WebhooksHandler) Chatbot(c *fiber.Ctx) error {
	normalizer, ok := h.normalizers["chatbot"]
	if !ok {
		return apperrors.NewNotFound("webhook", map[string]any{"channel": "chatbot"})
	}
	messages, err := normalizer.Normalize(c.Body())
	if err != nil {
		if errors.Is(err, inbound.ErrMalformedPayload) {
			return apperrors.NewInvalidRequest(err.Error(), nil)
		}
		return err
	}

	results, err := h.intake.Process(c.UserContext(), messages)
	if err != nil {
		return err
	}
	if len(results) == 0 || results[0].Outcome == service.OutcomeRejected {
		return apperrors.NewInvalidRequest("handoff could not be converted into a ticket", nil)
	}
	return c.JSON(dto.ChatbotHandoffResponse{
		Success:  true,
		TicketID: results[0].TicketID,
		Message:  "Ticket created successfully",
	})
}

func verifyHexSignature(header, secret string, body []byte) error {
	if secret == "" {
		return nil
	}
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return apperrors.NewUnauthorized("missing webhook signature")
	}
	want := hex.EncodeToString(hmacSHA256(secret, body))
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return apperrors.NewUnauthorized("invalid webhook signature")
	}
	return nil
}

func hmacSHA256(secret string, data []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return mac.Sum(nil)
}


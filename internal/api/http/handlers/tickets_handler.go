package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/omnichannel-support/internal/api/dto"
	"github.com/spec-kit/omnichannel-support/internal/auth"
	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/service"
	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		Source: domain.Source{
			Channel:          req.Source.Channel,
			OriginPlatformID: req.Source.OriginPlatformID,
			IsBotHandoff:     req.Source.IsBotHandoff,
		},
		Customer: service.CustomerInput{
			Name:            req.Customer.Name,
			PrimaryEmail:    req.Customer.PrimaryEmail,
			ChannelIdentity: req.Customer.ChannelIdentity,
		},
		Subject:        req.Subject,
		InitialMessage: req.InitialMessage,
		Priority:       req.Priority,
		Tags:           req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), c.Params("id"), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}
	senderType := req.SenderType
	if senderType == "" {
		senderType = domain.SenderTypeAgent
	}
	agentID := req.AgentID
	if senderType == domain.SenderTypeAgent && agentID == nil {
		if principal, ok := auth.PrincipalFromContext(c); ok {
			id := principal.ID
			agentID = &id
		}
	}

	ticket, err := h.service.AddMessage(c.UserContext(), c.Params("id"), service.AddMessageInput{
		SenderType:  senderType,
		Content:     req.Content,
		ContentType: req.ContentType,
		Visibility:  req.Visibility,
		AgentID:     agentID,
		Attachments: dto.ToDomainAttachments(req.Attachments),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// GetStatus GET /tickets/:id/status.
func (h *TicketsHandler) GetStatus(c *fiber.Ctx) error {
	view, err := h.service.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.TicketStatusResponse{
		TicketID:      view.TicketID,
		Status:        view.Status,
		UpdatedAt:     view.UpdatedAt,
		HasAgentReply: view.HasAgentReply,
	}
	if view.LastAgentMessage != nil {
		msg := dto.NewMessageResponse(view.LastAgentMessage)
		resp.LastAgentMessage = &msg
	}
	return c.JSON(resp)
}

// AssignTicket PUT /tickets/:id/assign?agent_id=.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	agentID := strings.TrimSpace(c.Query("agent_id"))
	if agentID == "" {
		return apperrors.NewInvalidRequest("agent_id query parameter required", nil)
	}
	ticket, err := h.service.AssignTicket(c.UserContext(), c.Params("id"), agentID)
	if err != nil {
		return err
	}
	return c.JSON(dto.AssignResponse{Success: true, Ticket: dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	input, err := parseListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), input)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Tickets))
	for i := range page.Tickets {
		items = append(items, dto.NewTicketResponse(&page.Tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{
		Tickets:    items,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

func parseListQuery(c *fiber.Ctx) (service.ListTicketsInput, error) {
	var input service.ListTicketsInput
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := domain.TicketStatus(status)
		input.Status = &s
	}
	if agent := strings.TrimSpace(c.Query("assigned_agent_id")); agent != "" {
		input.AssignedAgentID = &agent
	}
	var err error
	if input.Page, err = parseInt(c.Query("page"), "page"); err != nil {
		return input, err
	}
	if input.PageSize, err = parseInt(c.Query("page_size"), "page_size"); err != nil {
		return input, err
	}
	return input, nil
}

// parseInt returns 0 for an absent value so the service applies its default.
func parseInt(val, name string) (int, error) {
	if val == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewInvalidRequest(name+" must be an integer", map[string]any{name: val})
	}
	if parsed == 0 {
		// An explicit zero is out of range, not a request for the default.
		return -1, nil
	}
	return parsed, nil
}

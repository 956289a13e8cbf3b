package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/omnichannel-support/internal/api/dto"
	"github.com/spec-kit/omnichannel-support/internal/service"
)

// CustomersHandler serves customer lookups.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// GetCustomer GET /customers/:id.
func (h *CustomersHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCustomerResponse(customer))
}

// ListTickets GET /customers/:id/tickets.
func (h *CustomersHandler) ListTickets(c *fiber.Ctx) error {
	limit, err := parseInt(c.Query("limit"), "limit")
	if err != nil {
		return err
	}
	customerID := c.Params("id")
	tickets, err := h.service.ListTickets(c.UserContext(), customerID, limit)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(dto.CustomerTicketsResponse{CustomerID: customerID, Tickets: items, Count: len(items)})
}

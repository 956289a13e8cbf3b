package dto

// WebhookAck is returned to platform webhooks.
type WebhookAck struct {
	Status string `json:"status"`
}

// ChatbotHandoffResponse answers the chatbot escalation webhook.
type ChatbotHandoffResponse struct {
	Success  bool   `json:"success"`
	TicketID string `json:"ticket_id"`
	Message  string `json:"message"`
}

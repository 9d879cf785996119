package handlers

import (
	"fmt"
	"html"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/service"
)

// AckHandler serves the no-auth acknowledgment links embedded in
// notifications. Response shaping is selected by the format query param
// and never affects the transition itself.
type AckHandler struct {
	tickets *service.TicketService
	baseURL string
}

// NewAckHandler constructs handler.
func NewAckHandler(tickets *service.TicketService, baseURL string) *AckHandler {
	return &AckHandler{tickets: tickets, baseURL: baseURL}
}

// Acknowledge GET /ack/:ticketID?token=...&format=redirect|json|html.
// Default format is html since the link is opened from a chat card or
// email client.
func (h *AckHandler) Acknowledge(c *fiber.Ctx) error {
	ticket, outcome, err := h.tickets.AcknowledgeByToken(c.UserContext(), c.Params("ticketID"), c.Query("token"))
	if err != nil {
		return err
	}

	switch c.Query("format", "html") {
	case "redirect":
		return c.Redirect(fmt.Sprintf("%s/tickets/%s", h.baseURL, ticket.ID), fiber.StatusFound)
	case "json":
		return c.JSON(dto.AckResponse{
			Outcome:  string(outcome),
			TicketID: ticket.ID,
			Status:   string(ticket.Status),
		})
	default:
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(ackPage(string(outcome), ticket.Title))
	}
}

func ackPage(outcome, title string) string {
	message := map[string]string{
		"acknowledged":         "Ticket acknowledged. Escalation stopped.",
		"already_acknowledged": "Ticket was already acknowledged.",
		"already_resolved":     "Ticket is already resolved.",
	}[outcome]
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Acknowledgment</title></head>
<body style="font-family: sans-serif; margin: 3em auto; max-width: 32em;">
<h2>%s</h2>
<p>%s</p>
</body>
</html>`, html.EscapeString(title), message)
}

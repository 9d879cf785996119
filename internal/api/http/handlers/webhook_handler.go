package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/service"
	apperrors "github.com/spec-kit/escalation-service/pkg/util"
)

// WebhookHandler receives alert payloads from monitoring sources.
type WebhookHandler struct {
	tickets *service.TicketService
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(tickets *service.TicketService) *WebhookHandler {
	return &WebhookHandler{tickets: tickets}
}

// Receive POST /webhook/:namespaceSlug/:projectID?source=grafana.
// The body is any JSON object; unparseable payloads are rejected before a
// ticket is created.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var payload map[string]any
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return apperrors.NewValidationError("request body must be a JSON object", nil)
	}

	result, err := h.tickets.Ingest(
		c.UserContext(),
		c.Params("namespaceSlug"),
		c.Params("projectID"),
		c.Query("source"),
		payload,
	)
	if err != nil {
		return err
	}

	return c.JSON(dto.WebhookResponse{
		Status:        string(result.Status),
		TicketID:      result.TicketID,
		Source:        result.Source,
		ResolvedCount: result.ResolvedCount,
	})
}

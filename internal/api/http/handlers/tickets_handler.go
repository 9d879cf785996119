package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/service"
	apperrors "github.com/spec-kit/escalation-service/pkg/util"
)

// TicketsHandler serves the operator API over tickets.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, events, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, events)})
}

// Acknowledge POST /tickets/:id/ack.
func (h *TicketsHandler) Acknowledge(c *fiber.Ctx) error {
	var req dto.AckTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Actor) == "" {
		return apperrors.NewValidationError("actor required", nil)
	}
	ticket, outcome, err := h.tickets.Acknowledge(c.UserContext(), c.Params("id"), req.Actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":    ticketSummary(ticket),
		"outcome": string(outcome),
	})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Actor) == "" {
		return apperrors.NewValidationError("actor required", nil)
	}
	ticket, err := h.tickets.Resolve(c.UserContext(), c.Params("id"), req.Actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if projectID := c.Query("project_id"); projectID != "" {
		filter.ProjectID = &projectID
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if source := c.Query("source"); source != "" {
		filter.Source = &source
	}
	if term := c.Query("search"); term != "" {
		filter.SearchTerm = &term
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		ProjectID:       ticket.ProjectID,
		Source:          ticket.Source,
		Title:           ticket.Title,
		Severity:        ticket.Severity,
		Status:          string(ticket.Status),
		EscalationLevel: ticket.EscalationLevel,
		NotificationCnt: ticket.NotificationCnt,
		LastNotifiedAt:  ticket.LastNotifiedAt,
		AcknowledgedBy:  ticket.AcknowledgedBy,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, events []domain.Event) dto.TicketDetailResponse {
	timeline := make([]dto.EventResponse, 0, len(events))
	for _, event := range events {
		timeline = append(timeline, dto.EventResponse{
			ID:        event.ID,
			Type:      string(event.Type),
			Level:     event.Level,
			GroupID:   event.GroupID,
			GroupName: event.GroupName,
			Channel:   event.Channel,
			Success:   event.Success,
			Actor:     event.Actor,
			Details:   event.Details,
			CreatedAt: event.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketSummary:  ticketSummary(ticket),
		Description:    ticket.Description,
		Summary:        ticket.Summary,
		Labels:         ticket.Labels,
		ParsedData:     ticket.ParsedData,
		AcknowledgedAt: ticket.AcknowledgedAt,
		ResolvedAt:     ticket.ResolvedAt,
		Events:         timeline,
	}
}

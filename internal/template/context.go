// Package template builds per-send rendering contexts and renders the
// per-channel template strings. The rendering engine sits behind the
// Renderer interface so failures are reported, never propagated into
// ticket state.
package template

import (
	"fmt"
	"time"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// TicketView is the ticket snapshot exposed to templates.
type TicketView struct {
	ID              string
	Title           string
	Description     string
	Summary         string
	Severity        string
	Source          string
	Status          string
	Labels          map[string]string
	EscalationLevel int
	CreatedAt       string
}

// ProjectView is the project snapshot exposed to templates.
type ProjectView struct {
	ID          string
	Name        string
	Description string
}

// Context carries everything a notification template may reference.
type Context struct {
	Ticket             TicketView
	Project            *ProjectView
	Payload            map[string]any
	Parsed             map[string]any
	Source             string
	AckURL             string
	DetailURL          string
	IsEscalated        bool
	IsRepeated         bool
	IsAckNotification  bool
	AcknowledgedByName string
	NotificationCount  int
	NotificationLabel  string
}

// SendKind qualifies why a notification is being sent.
type SendKind struct {
	Escalated          bool
	Repeated           bool
	AckNotification    bool
	AcknowledgedByName string
}

// BuildContext assembles the template context for one send. The count is
// the 1-based ordinal of the notification being sent (bookkeeping is
// incremented after the send completes).
func BuildContext(ticket *domain.Ticket, project *domain.Project, baseURL string, kind SendKind) Context {
	count := ticket.NotificationCnt + 1

	view := TicketView{
		ID:              ticket.ID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		Summary:         ticket.Summary,
		Severity:        ticket.Severity,
		Source:          ticket.Source,
		Status:          string(ticket.Status),
		Labels:          ticket.Labels,
		EscalationLevel: ticket.EscalationLevel,
	}
	if !ticket.CreatedAt.IsZero() {
		view.CreatedAt = ticket.CreatedAt.UTC().Format(time.RFC3339)
	}

	ctx := Context{
		Ticket:             view,
		Payload:            ticket.Payload,
		Parsed:             ticket.ParsedData,
		Source:             ticket.Source,
		AckURL:             fmt.Sprintf("%s/ack/%s?token=%s", baseURL, ticket.ID, ticket.AckToken),
		DetailURL:          fmt.Sprintf("%s/tickets/%s", baseURL, ticket.ID),
		IsEscalated:        kind.Escalated,
		IsRepeated:         kind.Repeated,
		IsAckNotification:  kind.AckNotification,
		AcknowledgedByName: kind.AcknowledgedByName,
		NotificationCount:  count,
	}
	ctx.NotificationLabel = buildLabel(ticket, kind, count)

	if project != nil {
		ctx.Project = &ProjectView{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
		}
	}
	return ctx
}

// buildLabel produces the human-readable send qualifier. Levels are shown
// 1-based: internal level 1 reads "L2".
func buildLabel(ticket *domain.Ticket, kind SendKind, count int) string {
	switch {
	case kind.AckNotification:
		if kind.AcknowledgedByName != "" {
			return "acknowledged by " + kind.AcknowledgedByName
		}
		return "acknowledged"
	case kind.Escalated:
		return fmt.Sprintf("escalated to L%d", ticket.EscalationLevel+1)
	case kind.Repeated, count > 1:
		return fmt.Sprintf("notification #%d", count)
	}
	return ""
}

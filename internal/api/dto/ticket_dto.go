package dto

import "time"

// WebhookResponse reports the webhook outcome to the alert source.
type WebhookResponse struct {
	Status        string `json:"status"`
	TicketID      string `json:"ticket_id,omitempty"`
	Source        string `json:"source,omitempty"`
	ResolvedCount int    `json:"resolved_count,omitempty"`
}

// AckResponse is the JSON shape of a token acknowledgment.
type AckResponse struct {
	Outcome  string `json:"outcome"`
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// TicketSummary is the list-view shape.
type TicketSummary struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id"`
	Source          string     `json:"source"`
	Title           string     `json:"title"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	EscalationLevel int        `json:"escalation_level"`
	NotificationCnt int        `json:"notification_count"`
	LastNotifiedAt  *time.Time `json:"last_notified_at,omitempty"`
	AcknowledgedBy  *string    `json:"acknowledged_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TicketDetailResponse adds the full payload and event timeline.
type TicketDetailResponse struct {
	TicketSummary
	Description    string          `json:"description"`
	Summary        string          `json:"summary,omitempty"`
	Labels         map[string]string `json:"labels,omitempty"`
	ParsedData     map[string]any  `json:"parsed_data,omitempty"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	Events         []EventResponse `json:"events"`
}

// EventResponse is one timeline entry.
type EventResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Level     *int      `json:"level,omitempty"`
	GroupID   *string   `json:"group_id,omitempty"`
	GroupName *string   `json:"group_name,omitempty"`
	Channel   *string   `json:"channel,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Actor     *string   `json:"actor,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectSummary is the list-view shape for project configuration.
type ProjectSummary struct {
	ID                string     `json:"id"`
	NamespaceID       string     `json:"namespace_id"`
	Name              string     `json:"name"`
	IsActive          bool       `json:"is_active"`
	NotifyOnAck       bool       `json:"notify_on_ack"`
	EscalationEnabled bool       `json:"escalation_enabled"`
	TimeoutMinutes    int        `json:"escalation_timeout_minutes"`
	SilencedUntil     *time.Time `json:"silenced_until,omitempty"`
	Levels            int        `json:"levels"`
}

// EscalationLevel is one rung of a project's ladder with its group resolved.
type EscalationLevel struct {
	Level                 int    `json:"level"`
	GroupID               string `json:"group_id"`
	GroupName             string `json:"group_name,omitempty"`
	RepeatIntervalMinutes int    `json:"repeat_interval_minutes"`
}

// ProjectDetailResponse adds the resolved escalation ladder.
type ProjectDetailResponse struct {
	ProjectSummary
	Description string            `json:"description,omitempty"`
	Ladder      []EscalationLevel `json:"ladder"`
}

// AckTicketRequest names the actor for a manual acknowledgment.
type AckTicketRequest struct {
	Actor string `json:"actor"`
}

// ResolveTicketRequest names the actor for a manual resolution.
type ResolveTicketRequest struct {
	Actor string `json:"actor"`
}

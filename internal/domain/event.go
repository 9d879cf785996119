package domain

import "time"

// EventType enumerates ticket timeline entries.
type EventType string

const (
	EventCreated         EventType = "created"
	EventNotified        EventType = "notified"
	EventNotifiedSilence EventType = "notified_silenced"
	EventRepeated        EventType = "repeated"
	EventEscalated       EventType = "escalated"
	EventMaxLevelReached EventType = "max_level_reached"
	EventAcknowledged    EventType = "acknowledged"
	EventResolved        EventType = "resolved"
)

// Event is an immutable, append-only audit record on a ticket.
// The ordered event log is the sole audit trail for ticket state.
type Event struct {
	ID        string
	TicketID  string
	Type      EventType
	Level     *int
	GroupID   *string
	GroupName *string
	Channel   *string
	Success   *bool
	Actor     *string
	Details   string
	CreatedAt time.Time
}

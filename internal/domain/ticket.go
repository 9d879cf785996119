package domain

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending      TicketStatus = "pending"
	TicketStatusEscalated    TicketStatus = "escalated"
	TicketStatusAcknowledged TicketStatus = "acknowledged"
	TicketStatusResolved     TicketStatus = "resolved"
)

// SeverityCritical is the only severity that may escalate.
const SeverityCritical = "critical"

// AckActorLink marks acknowledgements performed through the token callback.
const AckActorLink = "link"

const ackTokenBytes = 32

// Ticket is the aggregate for one tracked alert occurrence.
type Ticket struct {
	ID              string
	ProjectID       string
	Source          string
	Status          TicketStatus
	EscalationLevel int
	Payload         map[string]any
	ParsedData      map[string]any
	Labels          map[string]string
	Title           string
	Description     string
	Severity        string
	Summary         string
	AckToken        string
	AcknowledgedAt  *time.Time
	AcknowledgedBy  *string
	LastNotifiedAt  *time.Time
	NotificationCnt int
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// NewAckToken returns a URL-safe random token of fixed length.
func NewAckToken() string {
	buf := make([]byte, ackTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("ack token entropy unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// IsResolved reports whether the ticket reached the terminal state.
func (t *Ticket) IsResolved() bool {
	return t.Status == TicketStatusResolved
}

// IsAcknowledged reports whether the ticket has been acknowledged.
func (t *Ticket) IsAcknowledged() bool {
	return t.Status == TicketStatusAcknowledged
}

// IsOpen reports whether the ticket is still awaiting acknowledgement.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusPending || t.Status == TicketStatusEscalated
}

// CanEscalate is true only for open tickets with critical severity.
func (t *Ticket) CanEscalate() bool {
	if !t.IsOpen() {
		return false
	}
	return strings.EqualFold(t.Severity, SeverityCritical)
}

// NotificationAnchor is the reference point for elapsed-time decisions:
// the last notification, or creation if nothing was ever sent.
func (t *Ticket) NotificationAnchor() time.Time {
	if t.LastNotifiedAt != nil {
		return *t.LastNotifiedAt
	}
	return t.CreatedAt
}

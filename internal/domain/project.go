package domain

import "time"

// EscalationConfig controls the unacknowledged-ticket timeout.
type EscalationConfig struct {
	Enabled        bool
	TimeoutMinutes int
}

// Timeout returns the escalation timeout as a duration.
func (c EscalationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Project is the escalation unit. The order of NotificationGroupIDs defines
// the escalation ladder: index 0 is level 0 (shown to users as L1).
type Project struct {
	ID                   string
	NamespaceID          string
	Name                 string
	Description          string
	NotificationGroupIDs []string
	TemplateID           *string
	Escalation           EscalationConfig
	IsActive             bool
	NotifyOnAck          bool
	SilencedUntil        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Silenced reports whether notifications are suppressed at the given time.
func (p *Project) Silenced(now time.Time) bool {
	return p.SilencedUntil != nil && now.Before(*p.SilencedUntil)
}

// GroupIDAt returns the group id bound at the given level, if in range.
// A level past the end of the list means the ladder has been exhausted
// (or shortened after a ticket escalated past it).
func (p *Project) GroupIDAt(level int) (string, bool) {
	if level < 0 || level >= len(p.NotificationGroupIDs) {
		return "", false
	}
	return p.NotificationGroupIDs[level], true
}

// MaxLevel is the highest valid escalation level index.
func (p *Project) MaxLevel() int {
	return len(p.NotificationGroupIDs) - 1
}

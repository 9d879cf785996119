package domain

import "time"

// ChannelType is the closed set of delivery channels.
type ChannelType string

const (
	ChannelFeishu ChannelType = "feishu"
	ChannelEmail  ChannelType = "email"
	ChannelSMS    ChannelType = "sms"
)

// RepeatInterval is the re-notification cadence in minutes; zero means none.
type RepeatInterval int

const (
	RepeatNone          RepeatInterval = 0
	RepeatOneMinute     RepeatInterval = 1
	RepeatFiveMinutes   RepeatInterval = 5
	RepeatTenMinutes    RepeatInterval = 10
	RepeatThirtyMinutes RepeatInterval = 30
)

// Valid reports whether the interval is one of the enumerated values.
func (r RepeatInterval) Valid() bool {
	switch r {
	case RepeatNone, RepeatOneMinute, RepeatFiveMinutes, RepeatTenMinutes, RepeatThirtyMinutes:
		return true
	}
	return false
}

// Duration returns the interval as a time.Duration; zero when none.
func (r RepeatInterval) Duration() time.Duration {
	return time.Duration(r) * time.Minute
}

// ChannelConfig binds a channel type to the contacts it should reach.
type ChannelConfig struct {
	Type       ChannelType `json:"type"`
	ContactIDs []string    `json:"contact_ids"`
}

// NotificationGroup is a reusable, named bundle of channel configurations.
// Groups are shared across projects and referenced by id, never embedded.
type NotificationGroup struct {
	ID             string
	Name           string
	Description    string
	RepeatInterval RepeatInterval
	ChannelConfigs []ChannelConfig
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repeats reports whether the group re-notifies on a cadence.
func (g *NotificationGroup) Repeats() bool {
	return g.RepeatInterval > RepeatNone
}

package domain

import "time"

// Contact is an address-book entry, not an authentication principal.
type Contact struct {
	ID               string
	Name             string
	Phones           []string
	Emails           []string
	FeishuWebhookURL string
	Note             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *Contact) HasFeishu() bool {
	return c.FeishuWebhookURL != ""
}

func (c *Contact) HasEmail() bool {
	return len(c.Emails) > 0
}

func (c *Contact) HasPhone() bool {
	return len(c.Phones) > 0
}

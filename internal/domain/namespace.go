package domain

import "time"

// Namespace groups projects under a slug used in webhook URLs.
type Namespace struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

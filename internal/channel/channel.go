// Package channel implements delivery adapters behind a single send
// contract. Adapters report failure through the returned error; callers
// record outcomes, they never abort on them.
package channel

import (
	"context"
	"net/http"

	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
)

// Content is the rendered payload handed to a channel. Feishu reads Body as
// a card JSON document; email uses Subject and Body; SMS uses Body.
type Content struct {
	Subject string
	Body    string
}

// Empty reports whether there is nothing to deliver.
func (c Content) Empty() bool {
	return c.Subject == "" && c.Body == ""
}

// Channel delivers rendered content to a set of contacts.
type Channel interface {
	Type() domain.ChannelType
	Send(ctx context.Context, contacts []domain.Contact, content Content) error
}

// Registry maps channel types to their adapters.
type Registry map[domain.ChannelType]Channel

// NewRegistry builds the default adapters from configuration.
func NewRegistry(cfg config.ChannelsConfig) Registry {
	client := &http.Client{Timeout: cfg.SendTimeout()}
	return Registry{
		domain.ChannelFeishu: NewFeishuChannel(client),
		domain.ChannelEmail:  NewEmailChannel(client, cfg),
		domain.ChannelSMS:    NewSMSChannel(client, cfg),
	}
}

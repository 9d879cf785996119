package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
)

// EmailChannel delivers through the Resend HTTP API.
type EmailChannel struct {
	client *http.Client
	apiKey string
	apiURL string
	from   string
}

// NewEmailChannel builds the adapter.
func NewEmailChannel(client *http.Client, cfg config.ChannelsConfig) *EmailChannel {
	return &EmailChannel{
		client: client,
		apiKey: cfg.ResendAPIKey,
		apiURL: cfg.ResendAPIURL,
		from:   cfg.ResendFromEmail,
	}
}

func (c *EmailChannel) Type() domain.ChannelType {
	return domain.ChannelEmail
}

// Send mails all addresses collected from the contacts in one API call.
func (c *EmailChannel) Send(ctx context.Context, contacts []domain.Contact, content Content) error {
	if c.apiKey == "" {
		return fmt.Errorf("email: RESEND_API_KEY not configured")
	}

	var recipients []string
	for _, contact := range contacts {
		recipients = append(recipients, contact.Emails...)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("email: no addresses in contacts")
	}

	body, err := json.Marshal(map[string]any{
		"from":    c.from,
		"to":      recipients,
		"subject": content.Subject,
		"html":    content.Body,
	})
	if err != nil {
		return fmt.Errorf("email: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("resend returned %d", resp.StatusCode)
	}
	return nil
}

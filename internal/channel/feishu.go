package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// FeishuChannel posts interactive cards to per-contact bot webhook URLs.
type FeishuChannel struct {
	client *http.Client
}

// NewFeishuChannel builds the adapter.
func NewFeishuChannel(client *http.Client) *FeishuChannel {
	return &FeishuChannel{client: client}
}

func (c *FeishuChannel) Type() domain.ChannelType {
	return domain.ChannelFeishu
}

// Send posts the rendered card to every contact that has a webhook URL.
// Contacts without one are skipped; the send fails only when every
// reachable contact fails.
func (c *FeishuChannel) Send(ctx context.Context, contacts []domain.Contact, content Content) error {
	card := json.RawMessage(content.Body)
	if !json.Valid(card) {
		return fmt.Errorf("feishu: rendered card is not valid JSON")
	}

	body, err := json.Marshal(map[string]any{
		"msg_type": "interactive",
		"card":     card,
	})
	if err != nil {
		return fmt.Errorf("feishu: encode message: %w", err)
	}

	attempted := 0
	failed := 0
	for _, contact := range contacts {
		if !contact.HasFeishu() {
			continue
		}
		attempted++
		if err := c.post(ctx, contact.FeishuWebhookURL, body); err != nil {
			failed++
		}
	}
	if attempted == 0 {
		return fmt.Errorf("feishu: no contact has a webhook url")
	}
	if failed == attempted {
		return fmt.Errorf("feishu: all %d webhook posts failed", failed)
	}
	return nil
}

func (c *FeishuChannel) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feishu webhook returned %d", resp.StatusCode)
	}
	return nil
}

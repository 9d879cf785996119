package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
)

// SMSChannel delivers through the Twilio Messages API.
type SMSChannel struct {
	client *http.Client
	sid    string
	token  string
	from   string
	apiURL string
}

// NewSMSChannel builds the adapter.
func NewSMSChannel(client *http.Client, cfg config.ChannelsConfig) *SMSChannel {
	return &SMSChannel{
		client: client,
		sid:    cfg.TwilioSID,
		token:  cfg.TwilioToken,
		from:   cfg.TwilioFrom,
		apiURL: strings.TrimRight(cfg.TwilioAPIURL, "/"),
	}
}

func (c *SMSChannel) Type() domain.ChannelType {
	return domain.ChannelSMS
}

// Send texts every phone number collected from the contacts. The send
// fails only when every message fails.
func (c *SMSChannel) Send(ctx context.Context, contacts []domain.Contact, content Content) error {
	if c.sid == "" || c.token == "" {
		return fmt.Errorf("sms: twilio credentials not configured")
	}

	var numbers []string
	for _, contact := range contacts {
		numbers = append(numbers, contact.Phones...)
	}
	if len(numbers) == 0 {
		return fmt.Errorf("sms: no phone numbers in contacts")
	}

	failed := 0
	for _, to := range numbers {
		if err := c.send(ctx, to, content.Body); err != nil {
			failed++
		}
	}
	if failed == len(numbers) {
		return fmt.Errorf("sms: all %d messages failed", failed)
	}
	return nil
}

func (c *SMSChannel) send(ctx context.Context, to, message string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiURL, c.sid)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.sid, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio returned %d", resp.StatusCode)
	}
	return nil
}

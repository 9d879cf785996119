package domain

import "time"

// NotificationTemplate holds per-channel template strings. Rendering is
// delegated to the template package; this entity only stores the sources.
type NotificationTemplate struct {
	ID           string
	Name         string
	Description  string
	IsBuiltin    bool
	FeishuCard   string
	EmailSubject string
	EmailBody    string
	SMSMessage   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultTemplateName is the builtin fallback applied when a project has no
// template of its own.
const DefaultTemplateName = "default"

// DefaultTemplate returns the builtin template seeded at startup.
func DefaultTemplate() NotificationTemplate {
	return NotificationTemplate{
		Name:        DefaultTemplateName,
		Description: "Default notification template",
		IsBuiltin:   true,
		FeishuCard: `{
  "header": {
    "title": {"tag": "plain_text", "content": "[{{if .IsAckNotification}}acknowledged{{else if .IsEscalated}}escalated{{else if .IsRepeated}}notification #{{.NotificationCount}}{{else}}pending{{end}}] {{je .Ticket.Title}}"},
    "template": "{{if .IsAckNotification}}green{{else if .IsEscalated}}orange{{else if eq .Ticket.Severity "critical"}}carmine{{else if eq .Ticket.Severity "warning"}}yellow{{else}}red{{end}}"
  },
  "elements": [
    {"tag": "markdown", "content": "{{je .Ticket.Description}}"},
    {"tag": "markdown", "content": "severity: {{je .Ticket.Severity}} | {{je .NotificationLabel}}"},
    {"tag": "markdown", "content": "{{if not .IsAckNotification}}[Acknowledge]({{.AckURL}}) | {{end}}[Details]({{.DetailURL}})"},
    {"tag": "markdown", "content": "ticket: {{.Ticket.ID}}"}
  ]
}`,
		EmailSubject: `[{{.Source}}]{{if .NotificationLabel}} [{{.NotificationLabel}}]{{end}} {{.Ticket.Title}}`,
		EmailBody: `<h2>{{.Ticket.Title}}</h2>
{{if .NotificationLabel}}<p><strong>{{.NotificationLabel}}</strong></p>{{end}}
{{if .IsAckNotification}}<p><strong>Acknowledged by:</strong> {{.AcknowledgedByName}}</p>{{end}}
<p>{{.Ticket.Description}}</p>
<hr>
<p><strong>Source:</strong> {{.Source}}</p>
<p><strong>Severity:</strong> {{.Ticket.Severity}}</p>
<p><strong>Ticket:</strong> {{.Ticket.ID}}</p>
<p>
  {{if not .IsAckNotification}}<a href="{{.AckURL}}">Acknowledge</a> | {{end}}
  <a href="{{.DetailURL}}">Details</a>
</p>`,
		SMSMessage: `[{{.Source}}]{{if .NotificationLabel}}[{{.NotificationLabel}}]{{end}} {{.Ticket.Title}}`,
	}
}

package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/escalation-service/internal/domain"
)

func TestRenderSubstitutesContextFields(t *testing.T) {
	renderer := NewRenderer()

	out, err := renderer.Render("{{.Ticket.Title}} ({{.Ticket.Severity}})", Context{
		Ticket: TicketView{Title: "db down", Severity: "critical"},
	})

	require.NoError(t, err)
	assert.Equal(t, "db down (critical)", out)
}

func TestRenderEmptyTemplateYieldsEmptyString(t *testing.T) {
	renderer := NewRenderer()

	out, err := renderer.Render("", Context{})

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderReportsParseFailure(t *testing.T) {
	renderer := NewRenderer()

	_, err := renderer.Render("{{.Broken", Context{})

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
}

func TestRenderReportsMissingField(t *testing.T) {
	renderer := NewRenderer()

	_, err := renderer.Render("{{.NoSuchField}}", Context{})

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
}

func TestJsonEscapeKeepsCardValid(t *testing.T) {
	renderer := NewRenderer()

	out, err := renderer.Render(`{"content":"{{je .Ticket.Title}}"}`, Context{
		Ticket: TicketView{Title: "say \"hi\"\nnewline\\slash"},
	})

	require.NoError(t, err)
	require.True(t, json.Valid([]byte(out)), out)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "say \"hi\"\nnewline\\slash", decoded["content"])
}

func TestBuiltinFeishuCardRendersValidJSON(t *testing.T) {
	renderer := NewRenderer()
	ticket := &domain.Ticket{
		ID:       "ticket-1",
		Title:    `panic: "nil map"`,
		Severity: "critical",
		Source:   "grafana",
		AckToken: "tok",
	}
	project := &domain.Project{ID: "project-1", Name: "checkout"}

	tpl := domain.DefaultTemplate()
	ctx := BuildContext(ticket, project, "http://alerts.local", SendKind{Escalated: true})

	out, err := renderer.Render(tpl.FeishuCard, ctx)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)
}

func TestBuildContextURLsAndCount(t *testing.T) {
	ticket := &domain.Ticket{
		ID:              "ticket-1",
		AckToken:        "tok",
		NotificationCnt: 2,
	}

	ctx := BuildContext(ticket, nil, "http://alerts.local", SendKind{})

	assert.Equal(t, "http://alerts.local/ack/ticket-1?token=tok", ctx.AckURL)
	assert.Equal(t, "http://alerts.local/tickets/ticket-1", ctx.DetailURL)
	assert.Equal(t, 3, ctx.NotificationCount)
	assert.Nil(t, ctx.Project)
}

func TestBuildContextLabels(t *testing.T) {
	cases := []struct {
		name   string
		ticket domain.Ticket
		kind   SendKind
		want   string
	}{
		{
			name:   "first send has no label",
			ticket: domain.Ticket{},
			want:   "",
		},
		{
			name:   "escalation shows one-based level",
			ticket: domain.Ticket{EscalationLevel: 1},
			kind:   SendKind{Escalated: true},
			want:   "escalated to L2",
		},
		{
			name:   "repeat shows ordinal",
			ticket: domain.Ticket{NotificationCnt: 3},
			kind:   SendKind{Repeated: true},
			want:   "notification #4",
		},
		{
			name: "ack names the actor",
			kind: SendKind{AckNotification: true, AcknowledgedByName: "alice"},
			want: "acknowledged by alice",
		},
		{
			name: "ack without actor",
			kind: SendKind{AckNotification: true},
			want: "acknowledged",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := BuildContext(&tc.ticket, nil, "http://x", tc.kind)
			assert.Equal(t, tc.want, ctx.NotificationLabel)
		})
	}
}

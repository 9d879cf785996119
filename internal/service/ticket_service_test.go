package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/domain"
	apperrors "github.com/spec-kit/escalation-service/pkg/util"
)

type lifecycleFixture struct {
	service    *TicketService
	tickets    *memTicketRepo
	events     *memEventRepo
	projects   *memProjectRepo
	groups     *memGroupRepo
	dispatcher *recordingDispatcher
	project    *domain.Project
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	groupA := &domain.NotificationGroup{ID: "group-a", Name: "primary"}
	groupB := &domain.NotificationGroup{ID: "group-b", Name: "oncall-leads"}
	project := &domain.Project{
		ID:                   "project-1",
		NamespaceID:          "ns-1",
		Name:                 "checkout",
		NotificationGroupIDs: []string{"group-a", "group-b"},
		Escalation:           domain.EscalationConfig{Enabled: true, TimeoutMinutes: 5},
		IsActive:             true,
	}

	fixture := &lifecycleFixture{
		tickets:    newMemTicketRepo(),
		events:     &memEventRepo{},
		dispatcher: &recordingDispatcher{},
		project:    project,
	}
	fixture.projects = &memProjectRepo{projects: map[string]*domain.Project{project.ID: project}}
	fixture.groups = &memGroupRepo{groups: map[string]*domain.NotificationGroup{
		groupA.ID: groupA,
		groupB.ID: groupB,
	}}

	fixture.service = NewTicketService(TicketDependencies{
		TicketRepo:  fixture.tickets,
		EventRepo:   fixture.events,
		ProjectRepo: fixture.projects,
		NamespaceRepo: &memNamespaceRepo{namespaces: map[string]*domain.Namespace{
			"payments": {ID: "ns-1", Name: "Payments", Slug: "payments"},
		}},
		GroupRepo:  fixture.groups,
		Dispatcher: fixture.dispatcher,
		Logger:     zap.NewNop(),
	})
	return fixture
}

func (f *lifecycleFixture) ingest(t *testing.T, payload map[string]any) IngestResult {
	t.Helper()
	result, err := f.service.Ingest(context.Background(), "payments", "project-1", "custom", payload)
	require.NoError(t, err)
	return result
}

func criticalPayload() map[string]any {
	return map[string]any{"title": "db down", "severity": "critical"}
}

func TestIngestCreatesPendingTicket(t *testing.T) {
	fixture := newLifecycleFixture(t)

	result := fixture.ingest(t, criticalPayload())

	assert.Equal(t, IngestOK, result.Status)
	require.NotEmpty(t, result.TicketID)

	ticket, err := fixture.tickets.GetByID(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Equal(t, 0, ticket.EscalationLevel)
	assert.Equal(t, "db down", ticket.Title)
	assert.Equal(t, "critical", ticket.Severity)
	assert.NotEmpty(t, ticket.AckToken)

	require.Len(t, fixture.events.byType(ticket.ID, domain.EventCreated), 1)
	require.Len(t, fixture.dispatcher.calls, 1)
	assert.Equal(t, 0, fixture.dispatcher.calls[0].level)
}

func TestIngestAppliesParserDefaults(t *testing.T) {
	fixture := newLifecycleFixture(t)

	result := fixture.ingest(t, map[string]any{})

	ticket, err := fixture.tickets.GetByID(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", ticket.Title)
	assert.Equal(t, "warning", ticket.Severity)
}

func TestIngestSilencedProjectSkipsNotification(t *testing.T) {
	fixture := newLifecycleFixture(t)
	until := time.Now().Add(time.Hour)
	fixture.project.SilencedUntil = &until

	result := fixture.ingest(t, criticalPayload())

	assert.Equal(t, IngestSilenced, result.Status)
	require.NotEmpty(t, result.TicketID)
	assert.Empty(t, fixture.dispatcher.calls)
	require.Len(t, fixture.events.byType(result.TicketID, domain.EventNotifiedSilence), 1)
}

func TestIngestInactiveProjectIgnored(t *testing.T) {
	fixture := newLifecycleFixture(t)
	fixture.project.IsActive = false

	result := fixture.ingest(t, criticalPayload())

	assert.Equal(t, IngestIgnored, result.Status)
	assert.Empty(t, result.TicketID)
	assert.Empty(t, fixture.dispatcher.calls)
}

func TestIngestUnknownNamespaceFails(t *testing.T) {
	fixture := newLifecycleFixture(t)

	_, err := fixture.service.Ingest(context.Background(), "nope", "project-1", "custom", criticalPayload())

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestIngestResolvedStatusResolvesProjectTickets(t *testing.T) {
	fixture := newLifecycleFixture(t)
	first := fixture.ingest(t, criticalPayload())
	second := fixture.ingest(t, criticalPayload())

	// Acknowledged tickets resolve too; resolve applies to any
	// non-resolved status.
	_, _, err := fixture.service.Acknowledge(context.Background(), second.TicketID, "alice")
	require.NoError(t, err)

	result := fixture.ingest(t, map[string]any{"status": "resolved"})

	assert.Equal(t, IngestResolved, result.Status)
	assert.Equal(t, 2, result.ResolvedCount)
	for _, id := range []string{first.TicketID, second.TicketID} {
		ticket, err := fixture.tickets.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	}
}

func TestAcknowledgeStopsEscalationAndIsIdempotent(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())

	ticket, outcome, err := fixture.service.Acknowledge(context.Background(), created.TicketID, "alice")
	require.NoError(t, err)
	assert.Equal(t, AckDone, outcome)
	assert.Equal(t, domain.TicketStatusAcknowledged, ticket.Status)
	require.NotNil(t, ticket.AcknowledgedBy)
	assert.Equal(t, "alice", *ticket.AcknowledgedBy)

	_, outcome, err = fixture.service.Acknowledge(context.Background(), created.TicketID, "bob")
	require.NoError(t, err)
	assert.Equal(t, AckAlreadyAcked, outcome)
	assert.Len(t, fixture.events.byType(created.TicketID, domain.EventAcknowledged), 1)
}

func TestAcknowledgeResolvedTicketIsNoOp(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())

	_, err := fixture.service.Resolve(context.Background(), created.TicketID, "alice")
	require.NoError(t, err)

	_, outcome, err := fixture.service.Acknowledge(context.Background(), created.TicketID, "bob")
	require.NoError(t, err)
	assert.Equal(t, AckAlreadyResolved, outcome)
}

func TestAcknowledgeNotifiesOnAckWhenEnabled(t *testing.T) {
	fixture := newLifecycleFixture(t)
	fixture.project.NotifyOnAck = true
	created := fixture.ingest(t, criticalPayload())

	_, _, err := fixture.service.Acknowledge(context.Background(), created.TicketID, "alice")
	require.NoError(t, err)

	require.Len(t, fixture.dispatcher.ackCalls, 1)
	assert.Equal(t, created.TicketID+":alice", fixture.dispatcher.ackCalls[0])
}

func TestAcknowledgeByTokenRejectsWrongToken(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	before, err := fixture.events.ListByTicket(context.Background(), created.TicketID)
	require.NoError(t, err)

	_, _, err = fixture.service.AcknowledgeByToken(context.Background(), created.TicketID, "forged")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)

	after, err := fixture.events.ListByTicket(context.Background(), created.TicketID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	ticket, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
}

func TestAcknowledgeByTokenUsesLinkActor(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	stored, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)

	ticket, outcome, err := fixture.service.AcknowledgeByToken(context.Background(), created.TicketID, stored.AckToken)
	require.NoError(t, err)
	assert.Equal(t, AckDone, outcome)
	require.NotNil(t, ticket.AcknowledgedBy)
	assert.Equal(t, domain.AckActorLink, *ticket.AcknowledgedBy)
}

func TestResolveIsTerminalAndIdempotent(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())

	ticket, err := fixture.service.Resolve(context.Background(), created.TicketID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)

	_, err = fixture.service.Resolve(context.Background(), created.TicketID, "bob")
	require.NoError(t, err)
	assert.Len(t, fixture.events.byType(created.TicketID, domain.EventResolved), 1)
}

func TestEscalateAdvancesLevelOnce(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	ticket, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)

	require.NoError(t, fixture.service.Escalate(context.Background(), ticket, fixture.project))

	assert.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	assert.Equal(t, 1, ticket.EscalationLevel)

	escalations := fixture.events.byType(created.TicketID, domain.EventEscalated)
	require.Len(t, escalations, 1)
	require.NotNil(t, escalations[0].GroupID)
	assert.Equal(t, "group-b", *escalations[0].GroupID)

	calls := fixture.dispatcher.calls
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[1].level)
	assert.True(t, calls[1].kind.Escalated)
}

func TestEscalatePastLadderEndIsNoOp(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	ticket, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	require.NoError(t, fixture.service.Escalate(context.Background(), ticket, fixture.project))

	require.NoError(t, fixture.service.Escalate(context.Background(), ticket, fixture.project))

	assert.Equal(t, 1, ticket.EscalationLevel)
	assert.Len(t, fixture.events.byType(created.TicketID, domain.EventEscalated), 1)
}

func TestEscalateLosesRaceToAcknowledge(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	stale, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)

	_, _, err = fixture.service.Acknowledge(context.Background(), created.TicketID, "alice")
	require.NoError(t, err)

	require.NoError(t, fixture.service.Escalate(context.Background(), stale, fixture.project))

	ticket, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAcknowledged, ticket.Status)
	assert.Equal(t, 0, ticket.EscalationLevel)
	assert.Empty(t, fixture.events.byType(created.TicketID, domain.EventEscalated))
}

func TestRepeatKeepsStatusAndLevel(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	ticket, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	group, err := fixture.groups.GetByID(context.Background(), "group-a")
	require.NoError(t, err)

	require.NoError(t, fixture.service.Repeat(context.Background(), ticket, fixture.project, group))

	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Equal(t, 0, ticket.EscalationLevel)
	require.Len(t, fixture.events.byType(created.TicketID, domain.EventRepeated), 1)

	calls := fixture.dispatcher.calls
	require.Len(t, calls, 2)
	assert.True(t, calls[1].kind.Repeated)
}

func TestRepeatSkipsClosedTicket(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	stale, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	group, err := fixture.groups.GetByID(context.Background(), "group-a")
	require.NoError(t, err)

	_, _, err = fixture.service.Acknowledge(context.Background(), created.TicketID, "alice")
	require.NoError(t, err)

	require.NoError(t, fixture.service.Repeat(context.Background(), stale, fixture.project, group))
	assert.Empty(t, fixture.events.byType(created.TicketID, domain.EventRepeated))
}

func TestMarkMaxLevelAppendsOnce(t *testing.T) {
	fixture := newLifecycleFixture(t)
	created := fixture.ingest(t, criticalPayload())
	ticket, err := fixture.tickets.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	group, err := fixture.groups.GetByID(context.Background(), "group-b")
	require.NoError(t, err)

	require.NoError(t, fixture.service.MarkMaxLevel(context.Background(), ticket, group))
	require.NoError(t, fixture.service.MarkMaxLevel(context.Background(), ticket, group))

	assert.Len(t, fixture.events.byType(created.TicketID, domain.EventMaxLevelReached), 1)
}

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/source"
	"github.com/spec-kit/escalation-service/internal/template"
	apperrors "github.com/spec-kit/escalation-service/pkg/util"
)

// IngestStatus is the webhook outcome reported to the sender.
type IngestStatus string

const (
	IngestOK       IngestStatus = "ok"
	IngestSilenced IngestStatus = "silenced"
	IngestResolved IngestStatus = "resolved"
	IngestIgnored  IngestStatus = "ignored"
)

// IngestResult describes what a webhook produced.
type IngestResult struct {
	Status        IngestStatus
	TicketID      string
	Source        string
	ResolvedCount int
}

// AckOutcome reports the effect of an acknowledge call. Acknowledging a
// ticket that already reached an equivalent or terminal state is a no-op
// that reports the existing state.
type AckOutcome string

const (
	AckDone            AckOutcome = "acknowledged"
	AckAlreadyAcked    AckOutcome = "already_acknowledged"
	AckAlreadyResolved AckOutcome = "already_resolved"
)

// TicketService is the ticket lifecycle state machine: ingestion, creation,
// acknowledgment, resolution, and the scheduler-driven transitions.
type TicketService struct {
	tickets    repository.TicketRepository
	events     repository.EventRepository
	projects   repository.ProjectRepository
	namespaces repository.NamespaceRepository
	groups     repository.GroupRepository
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the lifecycle engine.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	EventRepo     repository.EventRepository
	ProjectRepo   repository.ProjectRepository
	NamespaceRepo repository.NamespaceRepository
	GroupRepo     repository.GroupRepository
	Dispatcher    Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		events:     deps.EventRepo,
		projects:   deps.ProjectRepo,
		namespaces: deps.NamespaceRepo,
		groups:     deps.GroupRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// Ingest handles one webhook delivery. Route validation happens before any
// ticket mutation; an inactive project creates nothing.
func (s *TicketService) Ingest(ctx context.Context, namespaceSlug, projectID, sourceTag string, payload map[string]any) (IngestResult, error) {
	if sourceTag == "" {
		sourceTag = "custom"
	}

	namespace, err := s.namespaces.GetBySlug(ctx, namespaceSlug)
	if err != nil {
		return IngestResult{}, notFoundOr(err, "namespace")
	}
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil || project.NamespaceID != namespace.ID {
		return IngestResult{}, notFoundOr(err, "project")
	}

	if !project.IsActive {
		s.countWebhook(IngestIgnored)
		return IngestResult{Status: IngestIgnored, Source: sourceTag}, nil
	}

	fields, parsed := source.Parse(sourceTag, payload)

	if fields.Resolved() {
		count, err := s.resolveAll(ctx, project)
		if err != nil {
			return IngestResult{}, err
		}
		s.countWebhook(IngestResolved)
		return IngestResult{Status: IngestResolved, Source: sourceTag, ResolvedCount: count}, nil
	}

	ticket := &domain.Ticket{
		ID:              uuid.NewString(),
		ProjectID:       project.ID,
		Source:          sourceTag,
		Status:          domain.TicketStatusPending,
		EscalationLevel: 0,
		Payload:         payload,
		ParsedData:      parsed,
		Labels:          fields.Labels,
		Title:           fields.Title,
		Description:     fields.Description,
		Severity:        fields.Severity,
		Summary:         fields.Summary,
		AckToken:        domain.NewAckToken(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return IngestResult{}, err
	}
	s.appendEvent(ctx, ticket.ID, domain.Event{Type: domain.EventCreated, Details: "source: " + sourceTag})
	s.countTransition(domain.TicketStatusPending)

	if project.Silenced(s.now()) {
		level := 0
		s.appendEvent(ctx, ticket.ID, domain.Event{
			Type:    domain.EventNotifiedSilence,
			Level:   &level,
			Details: "project silenced, notification skipped",
		})
		s.countWebhook(IngestSilenced)
		return IngestResult{Status: IngestSilenced, TicketID: ticket.ID, Source: sourceTag}, nil
	}

	if _, err := s.dispatcher.Dispatch(ctx, ticket, project, 0, template.SendKind{}); err != nil {
		s.logger.Error("initial notification dispatch", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.countWebhook(IngestOK)
	return IngestResult{Status: IngestOK, TicketID: ticket.ID, Source: sourceTag}, nil
}

// Acknowledge moves a ticket to acknowledged. Idempotent on repeated calls
// and on resolved tickets.
func (s *TicketService) Acknowledge(ctx context.Context, ticketID, actor string) (*domain.Ticket, AckOutcome, error) {
	outcome := AckDone
	ticket, changed, err := s.transition(ctx, ticketID, func(t *domain.Ticket) bool {
		switch t.Status {
		case domain.TicketStatusResolved:
			outcome = AckAlreadyResolved
			return false
		case domain.TicketStatusAcknowledged:
			outcome = AckAlreadyAcked
			return false
		}
		now := s.now()
		t.Status = domain.TicketStatusAcknowledged
		t.AcknowledgedAt = &now
		t.AcknowledgedBy = &actor
		return true
	})
	if err != nil {
		return nil, "", err
	}
	if !changed {
		return ticket, outcome, nil
	}

	s.appendEvent(ctx, ticket.ID, domain.Event{
		Type:    domain.EventAcknowledged,
		Actor:   &actor,
		Details: "acknowledged by " + actor,
	})
	s.countTransition(domain.TicketStatusAcknowledged)

	project, err := s.projects.GetByID(ctx, ticket.ProjectID)
	if err != nil {
		s.logger.Warn("load project for ack notification", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ticket, AckDone, nil
	}
	if project.NotifyOnAck {
		if err := s.dispatcher.NotifyAcknowledged(ctx, ticket, project, actor); err != nil {
			s.logger.Error("ack confirmation dispatch", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, AckDone, nil
}

// AcknowledgeByToken acknowledges through the callback link. The token is
// compared in constant time; a mismatch changes nothing.
func (s *TicketService) AcknowledgeByToken(ctx context.Context, ticketID, token string) (*domain.Ticket, AckOutcome, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, "", notFoundOr(err, "ticket")
	}
	if subtle.ConstantTimeCompare([]byte(ticket.AckToken), []byte(token)) != 1 {
		return nil, "", apperrors.NewAuthorizationError("invalid acknowledgement token")
	}
	return s.Acknowledge(ctx, ticketID, domain.AckActorLink)
}

// Resolve marks a ticket resolved. Resolved is absorbing: repeated calls
// are no-ops.
func (s *TicketService) Resolve(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	ticket, changed, err := s.transition(ctx, ticketID, func(t *domain.Ticket) bool {
		if t.IsResolved() {
			return false
		}
		now := s.now()
		t.Status = domain.TicketStatusResolved
		t.ResolvedAt = &now
		return true
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.appendEvent(ctx, ticket.ID, domain.Event{
			Type:    domain.EventResolved,
			Actor:   &actor,
			Details: "resolved by " + actor,
		})
		s.countTransition(domain.TicketStatusResolved)
	}
	return ticket, nil
}

// resolveAll resolves every non-resolved ticket of the project on an
// upstream resolved signal. Acknowledged tickets resolve too: resolve
// applies to any non-resolved status.
func (s *TicketService) resolveAll(ctx context.Context, project *domain.Project) (int, error) {
	open, err := s.tickets.ListUnresolvedByProject(ctx, project.ID)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range open {
		ticket, changed, err := s.transition(ctx, open[i].ID, func(t *domain.Ticket) bool {
			if t.IsResolved() {
				return false
			}
			now := s.now()
			t.Status = domain.TicketStatusResolved
			t.ResolvedAt = &now
			return true
		})
		if err != nil {
			s.logger.Error("auto-resolve ticket", zap.String("ticket_id", open[i].ID), zap.Error(err))
			continue
		}
		if changed {
			s.appendEvent(ctx, ticket.ID, domain.Event{
				Type:    domain.EventResolved,
				Details: "auto-resolved: resolved status received from source",
			})
			s.countTransition(domain.TicketStatusResolved)
			resolved++
		}
	}
	return resolved, nil
}

// Escalate advances a critical ticket to the next group level. Called only
// by the scheduler; the compare-and-swap guards against a concurrent
// acknowledge or resolve winning the race.
func (s *TicketService) Escalate(ctx context.Context, ticket *domain.Ticket, project *domain.Project) error {
	nextLevel := ticket.EscalationLevel + 1
	groupID, ok := project.GroupIDAt(nextLevel)
	if !ok {
		return nil
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		s.logger.Warn("next escalation group not found",
			zap.String("group_id", groupID),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return nil
	}

	priorLevel := ticket.EscalationLevel
	fresh, changed, err := s.transition(ctx, ticket.ID, func(t *domain.Ticket) bool {
		if !t.CanEscalate() || t.EscalationLevel != priorLevel {
			return false
		}
		t.Status = domain.TicketStatusEscalated
		t.EscalationLevel = nextLevel
		return true
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	*ticket = *fresh

	s.appendEvent(ctx, ticket.ID, domain.Event{
		Type:      domain.EventEscalated,
		Level:     &nextLevel,
		GroupID:   &group.ID,
		GroupName: &group.Name,
	})
	s.countTransition(domain.TicketStatusEscalated)
	if s.metrics != nil {
		s.metrics.Escalations.Inc()
	}

	if _, err := s.dispatcher.Dispatch(ctx, ticket, project, nextLevel, template.SendKind{Escalated: true}); err != nil {
		s.logger.Error("escalation dispatch", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return nil
}

// Repeat re-notifies the current level without changing status or level.
func (s *TicketService) Repeat(ctx context.Context, ticket *domain.Ticket, project *domain.Project, group *domain.NotificationGroup) error {
	fresh, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if !fresh.IsOpen() {
		return nil
	}
	*ticket = *fresh

	level := ticket.EscalationLevel
	s.appendEvent(ctx, ticket.ID, domain.Event{
		Type:      domain.EventRepeated,
		Level:     &level,
		GroupID:   &group.ID,
		GroupName: &group.Name,
	})
	if s.metrics != nil {
		s.metrics.Repeats.Inc()
	}

	if _, err := s.dispatcher.Dispatch(ctx, ticket, project, level, template.SendKind{Repeated: true}); err != nil {
		s.logger.Error("repeat dispatch", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return nil
}

// MarkMaxLevel records that the ladder is exhausted. Appended once per
// occurrence: skipped while it is already the most recent event.
func (s *TicketService) MarkMaxLevel(ctx context.Context, ticket *domain.Ticket, group *domain.NotificationGroup) error {
	log, err := s.events.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if len(log) > 0 && log[len(log)-1].Type == domain.EventMaxLevelReached {
		return nil
	}

	level := ticket.EscalationLevel
	s.appendEvent(ctx, ticket.ID, domain.Event{
		Type:      domain.EventMaxLevelReached,
		Level:     &level,
		GroupID:   &group.ID,
		GroupName: &group.Name,
		Details:   "no further notification group configured",
	})
	return nil
}

// GetTicket fetches a ticket with its event log.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, []domain.Event, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, notFoundOr(err, "ticket")
	}
	log, err := s.events.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, log, nil
}

// ListTickets returns tickets for the admin API.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// transition runs a read-decide-write cycle under optimistic concurrency.
// A lost race is retried once against fresh state; apply returning false
// reports a no-op (the ticket already reached a terminal or equivalent
// state).
func (s *TicketService) transition(ctx context.Context, ticketID string, apply func(*domain.Ticket) bool) (*domain.Ticket, bool, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, false, notFoundOr(err, "ticket")
	}
	for attempt := 0; ; attempt++ {
		if !apply(ticket) {
			return ticket, false, nil
		}
		err := s.tickets.Update(ctx, ticket)
		if err == nil {
			return ticket, true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt > 0 {
			return nil, false, err
		}
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, false, err
		}
	}
}

func (s *TicketService) appendEvent(ctx context.Context, ticketID string, event domain.Event) {
	event.ID = uuid.NewString()
	event.TicketID = ticketID
	if err := s.events.Append(ctx, &event); err != nil {
		s.logger.Error("append ticket event",
			zap.String("ticket_id", ticketID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *TicketService) countWebhook(status IngestStatus) {
	if s.metrics != nil {
		s.metrics.WebhooksReceived.WithLabelValues(string(status)).Inc()
	}
}

func (s *TicketService) countTransition(to domain.TicketStatus) {
	if s.metrics != nil {
		s.metrics.TicketTransitions.WithLabelValues(string(to)).Inc()
	}
}

// notFoundOr maps a missing row to NOT_FOUND and passes other errors through.
func notFoundOr(err error, resource string) error {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}

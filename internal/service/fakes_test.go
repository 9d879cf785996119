package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/template"
)

type memTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.Version = 1
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) ListOpenByProject(_ context.Context, projectID string) ([]domain.Ticket, error) {
	return r.list(projectID, domain.TicketStatusPending, domain.TicketStatusEscalated)
}

func (r *memTicketRepo) ListUnresolvedByProject(_ context.Context, projectID string) ([]domain.Ticket, error) {
	return r.list(projectID, domain.TicketStatusPending, domain.TicketStatusEscalated, domain.TicketStatusAcknowledged)
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.ProjectID != nil && ticket.ProjectID != *filter.ProjectID {
			continue
		}
		out = append(out, *ticket)
	}
	return out, nil
}

func (r *memTicketRepo) list(projectID string, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.ProjectID != projectID {
			continue
		}
		for _, status := range statuses {
			if ticket.Status == status {
				out = append(out, *ticket)
				break
			}
		}
	}
	return out, nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *memEventRepo) Append(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.events = append(r.events, *event)
	return nil
}

func (r *memEventRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, event := range r.events {
		if event.TicketID == ticketID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *memEventRepo) byType(ticketID string, eventType domain.EventType) []domain.Event {
	events, _ := r.ListByTicket(context.Background(), ticketID)
	var out []domain.Event
	for _, event := range events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type memProjectRepo struct {
	projects map[string]*domain.Project
}

func (r *memProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *project
	return &clone, nil
}

func (r *memProjectRepo) ListEscalating(_ context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for _, project := range r.projects {
		if project.Escalation.Enabled && project.IsActive {
			out = append(out, *project)
		}
	}
	return out, nil
}

func (r *memProjectRepo) List(_ context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for _, project := range r.projects {
		out = append(out, *project)
	}
	return out, nil
}

type memNamespaceRepo struct {
	namespaces map[string]*domain.Namespace
}

func (r *memNamespaceRepo) GetBySlug(_ context.Context, slug string) (*domain.Namespace, error) {
	namespace, ok := r.namespaces[slug]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *namespace
	return &clone, nil
}

type memGroupRepo struct {
	groups map[string]*domain.NotificationGroup
}

func (r *memGroupRepo) GetByID(_ context.Context, id string) (*domain.NotificationGroup, error) {
	group, ok := r.groups[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *group
	return &clone, nil
}

func (r *memGroupRepo) GetByIDs(_ context.Context, ids []string) (map[string]domain.NotificationGroup, error) {
	out := make(map[string]domain.NotificationGroup)
	for _, id := range ids {
		if group, ok := r.groups[id]; ok {
			out[id] = *group
		}
	}
	return out, nil
}

type memContactRepo struct {
	contacts map[string]domain.Contact
}

func (r *memContactRepo) GetByIDs(_ context.Context, ids []string) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, id := range ids {
		if contact, ok := r.contacts[id]; ok {
			out = append(out, contact)
		}
	}
	return out, nil
}

type memTemplateRepo struct {
	byID   map[string]*domain.NotificationTemplate
	byName map[string]*domain.NotificationTemplate
}

func (r *memTemplateRepo) GetByID(_ context.Context, id string) (*domain.NotificationTemplate, error) {
	tpl, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *tpl
	return &clone, nil
}

func (r *memTemplateRepo) GetByName(_ context.Context, name string) (*domain.NotificationTemplate, error) {
	tpl, ok := r.byName[name]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *tpl
	return &clone, nil
}

func (r *memTemplateRepo) UpsertBuiltin(_ context.Context, tpl *domain.NotificationTemplate) error {
	if r.byName == nil {
		r.byName = make(map[string]*domain.NotificationTemplate)
	}
	clone := *tpl
	r.byName[tpl.Name] = &clone
	return nil
}

// dispatchCall records one fan-out request.
type dispatchCall struct {
	ticketID string
	level    int
	kind     template.SendKind
}

type recordingDispatcher struct {
	mu       sync.Mutex
	calls    []dispatchCall
	ackCalls []string
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ticket *domain.Ticket, _ *domain.Project, level int, kind template.SendKind) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{ticketID: ticket.ID, level: level, kind: kind})
	return true, d.err
}

func (d *recordingDispatcher) NotifyAcknowledged(_ context.Context, ticket *domain.Ticket, _ *domain.Project, acknowledgedBy string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ackCalls = append(d.ackCalls, ticket.ID+":"+acknowledgedBy)
	return d.err
}

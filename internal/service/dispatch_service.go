package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/channel"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/template"
)

// Dispatcher is the notification fan-out consumed by the lifecycle engine
// and the scheduler.
type Dispatcher interface {
	// Dispatch sends to the group bound at the given escalation level.
	// An out-of-range level (ladder shortened after escalation) is a no-op
	// with a logged warning, reported via the attempted flag.
	Dispatch(ctx context.Context, ticket *domain.Ticket, project *domain.Project, level int, kind template.SendKind) (bool, error)
	// NotifyAcknowledged fans an acknowledgement confirmation back to every
	// distinct group already notified for the ticket, per the event log.
	NotifyAcknowledged(ctx context.Context, ticket *domain.Ticket, project *domain.Project, acknowledgedBy string) error
}

// DispatchService resolves groups into channel targets, renders content,
// delivers it, and records the outcome on the ticket timeline.
type DispatchService struct {
	tickets     repository.TicketRepository
	events      repository.EventRepository
	groups      repository.GroupRepository
	contacts    repository.ContactRepository
	templates   repository.TemplateRepository
	renderer    template.Renderer
	channels    channel.Registry
	logger      *zap.Logger
	metrics     *observability.Metrics
	baseURL     string
	sendTimeout time.Duration
	now         func() time.Time
}

// DispatchDependencies bundles collaborators for the dispatch service.
type DispatchDependencies struct {
	TicketRepo   repository.TicketRepository
	EventRepo    repository.EventRepository
	GroupRepo    repository.GroupRepository
	ContactRepo  repository.ContactRepository
	TemplateRepo repository.TemplateRepository
	Renderer     template.Renderer
	Channels     channel.Registry
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	BaseURL      string
	SendTimeout  time.Duration
}

// NewDispatchService constructs the service.
func NewDispatchService(deps DispatchDependencies) *DispatchService {
	timeout := deps.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DispatchService{
		tickets:     deps.TicketRepo,
		events:      deps.EventRepo,
		groups:      deps.GroupRepo,
		contacts:    deps.ContactRepo,
		templates:   deps.TemplateRepo,
		renderer:    deps.Renderer,
		channels:    deps.Channels,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		baseURL:     deps.BaseURL,
		sendTimeout: timeout,
		now:         time.Now,
	}
}

// channelResult is the outcome of one channel config attempt.
type channelResult struct {
	channelType domain.ChannelType
	success     bool
	detail      string
}

// Dispatch implements Dispatcher.
func (s *DispatchService) Dispatch(ctx context.Context, ticket *domain.Ticket, project *domain.Project, level int, kind template.SendKind) (bool, error) {
	groupID, ok := project.GroupIDAt(level)
	if !ok {
		s.logger.Warn("escalation level out of range for project group list",
			zap.String("ticket_id", ticket.ID),
			zap.String("project_id", project.ID),
			zap.Int("level", level),
			zap.Int("groups", len(project.NotificationGroupIDs)))
		return false, nil
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		s.logger.Warn("notification group not found",
			zap.String("group_id", groupID),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return false, nil
	}

	s.dispatchGroup(ctx, ticket, project, group, level, kind)

	if !kind.AckNotification {
		if err := s.recordSend(ctx, ticket); err != nil {
			return true, err
		}
	}
	return true, nil
}

// NotifyAcknowledged implements Dispatcher. Groups are discovered from the
// event log, not from the current escalation level, so a group removed from
// the project after being notified still gets the confirmation.
func (s *DispatchService) NotifyAcknowledged(ctx context.Context, ticket *domain.Ticket, project *domain.Project, acknowledgedBy string) error {
	log, err := s.events.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}

	type notified struct {
		groupID string
		level   int
	}
	seen := make(map[string]struct{})
	var targets []notified
	for _, event := range log {
		if event.Type != domain.EventNotified || event.GroupID == nil {
			continue
		}
		if _, dup := seen[*event.GroupID]; dup {
			continue
		}
		seen[*event.GroupID] = struct{}{}
		level := 0
		if event.Level != nil {
			level = *event.Level
		}
		targets = append(targets, notified{groupID: *event.GroupID, level: level})
	}

	kind := template.SendKind{AckNotification: true, AcknowledgedByName: acknowledgedBy}
	for _, target := range targets {
		group, err := s.groups.GetByID(ctx, target.groupID)
		if err != nil {
			s.logger.Warn("notified group missing for ack confirmation",
				zap.String("group_id", target.groupID),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		s.dispatchGroup(ctx, ticket, project, group, target.level, kind)
	}
	return nil
}

// dispatchGroup renders and delivers to every channel config in the group.
// Channel sends run concurrently and all complete (or time out) before the
// notified events are appended.
func (s *DispatchService) dispatchGroup(ctx context.Context, ticket *domain.Ticket, project *domain.Project, group *domain.NotificationGroup, level int, kind template.SendKind) {
	tpl := s.templateFor(ctx, project)
	tctx := template.BuildContext(ticket, project, s.baseURL, kind)

	results := make([]channelResult, len(group.ChannelConfigs))
	var wg sync.WaitGroup
	for i, cfg := range group.ChannelConfigs {
		content, renderErr := s.renderFor(cfg.Type, tpl, tctx)
		if renderErr != nil {
			results[i] = channelResult{channelType: cfg.Type, success: false, detail: renderErr.Error()}
			continue
		}
		if content.Empty() {
			results[i] = channelResult{channelType: cfg.Type, detail: "template rendered empty content"}
			continue
		}

		wg.Add(1)
		go func(i int, cfg domain.ChannelConfig, content channel.Content) {
			defer wg.Done()
			results[i] = s.sendChannel(ctx, cfg, content)
		}(i, cfg, content)
	}
	wg.Wait()

	for _, result := range results {
		s.appendNotified(ctx, ticket, group, level, result)
	}
}

func (s *DispatchService) sendChannel(ctx context.Context, cfg domain.ChannelConfig, content channel.Content) channelResult {
	result := channelResult{channelType: cfg.Type}

	adapter, ok := s.channels[cfg.Type]
	if !ok {
		result.detail = fmt.Sprintf("no adapter for channel %q", cfg.Type)
		return result
	}

	contacts, err := s.contacts.GetByIDs(ctx, cfg.ContactIDs)
	if err != nil {
		result.detail = fmt.Sprintf("resolve contacts: %v", err)
		return result
	}
	if len(contacts) == 0 {
		result.detail = "no contacts resolved"
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := adapter.Send(sendCtx, contacts, content); err != nil {
		result.detail = err.Error()
		return result
	}
	result.success = true
	result.detail = "delivered"
	return result
}

func (s *DispatchService) renderFor(channelType domain.ChannelType, tpl *domain.NotificationTemplate, tctx template.Context) (channel.Content, error) {
	switch channelType {
	case domain.ChannelFeishu:
		body, err := s.renderer.Render(tpl.FeishuCard, tctx)
		return channel.Content{Body: body}, err
	case domain.ChannelEmail:
		subject, err := s.renderer.Render(tpl.EmailSubject, tctx)
		if err != nil {
			return channel.Content{}, err
		}
		body, err := s.renderer.Render(tpl.EmailBody, tctx)
		return channel.Content{Subject: subject, Body: body}, err
	case domain.ChannelSMS:
		body, err := s.renderer.Render(tpl.SMSMessage, tctx)
		return channel.Content{Body: body}, err
	}
	return channel.Content{}, fmt.Errorf("unknown channel type %q", channelType)
}

func (s *DispatchService) appendNotified(ctx context.Context, ticket *domain.Ticket, group *domain.NotificationGroup, level int, result channelResult) {
	channelName := string(result.channelType)
	event := &domain.Event{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		Type:      domain.EventNotified,
		Level:     &level,
		GroupID:   &group.ID,
		GroupName: &group.Name,
		Channel:   &channelName,
		Success:   &result.success,
		Details:   result.detail,
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("append notified event", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	if s.metrics != nil {
		outcome := "failure"
		if result.success {
			outcome = "success"
		}
		s.metrics.Notifications.WithLabelValues(channelName, outcome).Inc()
	}
}

// recordSend updates notification bookkeeping transactionally with the
// send, retrying once on a concurrent transition.
func (s *DispatchService) recordSend(ctx context.Context, ticket *domain.Ticket) error {
	for attempt := 0; ; attempt++ {
		now := s.now()
		ticket.NotificationCnt++
		ticket.LastNotifiedAt = &now

		err := s.tickets.Update(ctx, ticket)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt > 0 {
			return err
		}

		fresh, readErr := s.tickets.GetByID(ctx, ticket.ID)
		if readErr != nil {
			return readErr
		}
		*ticket = *fresh
	}
}

// templateFor resolves the project's template, falling back to the seeded
// default and finally to the in-memory builtin.
func (s *DispatchService) templateFor(ctx context.Context, project *domain.Project) *domain.NotificationTemplate {
	if project != nil && project.TemplateID != nil {
		tpl, err := s.templates.GetByID(ctx, *project.TemplateID)
		if err == nil {
			return tpl
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("load project template", zap.String("project_id", project.ID), zap.Error(err))
		}
	}
	tpl, err := s.templates.GetByName(ctx, domain.DefaultTemplateName)
	if err == nil {
		return tpl
	}
	fallback := domain.DefaultTemplate()
	return &fallback
}

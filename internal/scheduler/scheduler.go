package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/repository"
)

// Lifecycle is the slice of the ticket service the scheduler drives.
type Lifecycle interface {
	Escalate(ctx context.Context, ticket *domain.Ticket, project *domain.Project) error
	Repeat(ctx context.Context, ticket *domain.Ticket, project *domain.Project, group *domain.NotificationGroup) error
	MarkMaxLevel(ctx context.Context, ticket *domain.Ticket, group *domain.NotificationGroup) error
}

// Scheduler polls open tickets and applies time-based transitions:
// escalation up the group ladder, cadence re-notification, and the
// max-level marker. It keeps no state between ticks; every decision is
// derived from the stored tickets, so a restarted instance resumes
// correctly.
type Scheduler struct {
	tickets   repository.TicketRepository
	projects  repository.ProjectRepository
	groups    repository.GroupRepository
	lifecycle Lifecycle
	lease     Lease
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	now       func() time.Time
}

// Dependencies bundles collaborators for the scheduler.
type Dependencies struct {
	TicketRepo  repository.TicketRepository
	ProjectRepo repository.ProjectRepository
	GroupRepo   repository.GroupRepository
	Lifecycle   Lifecycle
	Lease       Lease
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Interval    time.Duration
}

// New constructs the scheduler.
func New(deps Dependencies) *Scheduler {
	lease := deps.Lease
	if lease == nil {
		lease = NoopLease{}
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		tickets:   deps.TicketRepo,
		projects:  deps.ProjectRepo,
		groups:    deps.GroupRepo,
		lifecycle: deps.Lifecycle,
		lease:     lease,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		interval:  interval,
		now:       time.Now,
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("escalation scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.lease.Release(releaseCtx); err != nil {
				s.logger.Warn("scheduler lease release", zap.Error(err))
			}
			cancel()
			s.logger.Info("escalation scheduler stopped")
			return
		case <-ticker.C:
			held, err := s.lease.Acquire(ctx)
			if err != nil {
				s.logger.Warn("scheduler lease acquire", zap.Error(err))
				continue
			}
			if !held {
				if s.metrics != nil {
					s.metrics.SchedulerSkipped.Inc()
				}
				continue
			}
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick", zap.Error(err))
			}
		}
	}
}

// Tick runs one full pass over every active escalating project. A failure
// on one ticket is logged and does not stop the pass.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.SchedulerTicks.Inc()
	}

	projects, err := s.projects.ListEscalating(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for i := range projects {
		project := &projects[i]
		if project.Silenced(now) {
			continue
		}
		open, err := s.tickets.ListOpenByProject(ctx, project.ID)
		if err != nil {
			s.logger.Error("list open tickets", zap.String("project_id", project.ID), zap.Error(err))
			continue
		}
		for j := range open {
			if err := s.process(ctx, &open[j], project, now); err != nil {
				s.logger.Error("process ticket",
					zap.String("ticket_id", open[j].ID),
					zap.String("project_id", project.ID),
					zap.Error(err))
			}
		}
	}
	return nil
}

// process applies at most one transition to the ticket for this tick.
// Escalation is checked first and wins over a due repeat; at the top of the
// ladder a configured repeat keeps firing and suppresses the max-level
// marker.
func (s *Scheduler) process(ctx context.Context, ticket *domain.Ticket, project *domain.Project, now time.Time) error {
	groupID, ok := project.GroupIDAt(ticket.EscalationLevel)
	if !ok {
		s.logger.Warn("ticket level has no group in project ladder",
			zap.String("ticket_id", ticket.ID),
			zap.Int("level", ticket.EscalationLevel))
		return nil
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}

	elapsed := now.Sub(ticket.NotificationAnchor())

	if ticket.CanEscalate() && elapsed >= project.Escalation.Timeout() {
		if _, next := project.GroupIDAt(ticket.EscalationLevel + 1); next {
			return s.lifecycle.Escalate(ctx, ticket, project)
		}
		// Ladder exhausted. A repeating top group keeps re-notifying;
		// otherwise record the dead end once.
		if !group.Repeats() {
			return s.lifecycle.MarkMaxLevel(ctx, ticket, group)
		}
	}

	if group.Repeats() && elapsed >= group.RepeatInterval.Duration() {
		return s.lifecycle.Repeat(ctx, ticket, project, group)
	}
	return nil
}

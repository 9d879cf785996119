package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// EventRepository stores the append-only ticket timeline.
type EventRepository interface {
	Append(ctx context.Context, event *domain.Event) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Event, error)
}

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository builds repository.
func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Append(ctx context.Context, event *domain.Event) error {
	const query = `
        INSERT INTO ticket_events (id, ticket_id, type, level, group_id, group_name, channel, success, actor, details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		event.ID,
		event.TicketID,
		event.Type,
		event.Level,
		event.GroupID,
		event.GroupName,
		event.Channel,
		event.Success,
		event.Actor,
		event.Details,
	).Scan(&event.CreatedAt)
}

func (r *eventRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Event, error) {
	const query = `
        SELECT id, ticket_id, type, level, group_id, group_name, channel, success, actor, details, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Event
	for rows.Next() {
		var event domain.Event
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.Type,
			&event.Level,
			&event.GroupID,
			&event.GroupName,
			&event.Channel,
			&event.Success,
			&event.Actor,
			&event.Details,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

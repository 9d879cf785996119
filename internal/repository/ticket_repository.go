package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// ErrVersionConflict signals a lost optimistic-concurrency race: another
// transition updated the ticket since it was read.
var ErrVersionConflict = errors.New("ticket version conflict")

// TicketFilter captures admin listing parameters.
type TicketFilter struct {
	ProjectID   *string
	Statuses    []domain.TicketStatus
	Source      *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Update performs a compare-and-swap keyed on ticket.Version. On success
	// the in-memory version is bumped; on a lost race ErrVersionConflict is
	// returned and the caller must re-read before retrying.
	Update(ctx context.Context, ticket *domain.Ticket) error
	ListOpenByProject(ctx context.Context, projectID string) ([]domain.Ticket, error)
	ListUnresolvedByProject(ctx context.Context, projectID string) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, project_id, source, status, escalation_level, payload, parsed_data, labels,
               title, description, severity, summary, ack_token, acknowledged_at, acknowledged_by,
               last_notified_at, notification_count, version, created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, project_id, source, status, escalation_level, payload, parsed_data, labels,
            title, description, severity, summary, ack_token, acknowledged_at, acknowledged_by,
            last_notified_at, notification_count, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,1)
        RETURNING version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.ProjectID,
		ticket.Source,
		ticket.Status,
		ticket.EscalationLevel,
		ticket.Payload,
		ticket.ParsedData,
		ticket.Labels,
		ticket.Title,
		ticket.Description,
		ticket.Severity,
		ticket.Summary,
		ticket.AckToken,
		ticket.AcknowledgedAt,
		ticket.AcknowledgedBy,
		ticket.LastNotifiedAt,
		ticket.NotificationCnt,
	).Scan(&ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, escalation_level=$2, acknowledged_at=$3, acknowledged_by=$4,
            last_notified_at=$5, notification_count=$6, resolved_at=$7,
            version=version+1, updated_at=NOW()
        WHERE id=$8 AND version=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.EscalationLevel,
		ticket.AcknowledgedAt,
		ticket.AcknowledgedBy,
		ticket.LastNotifiedAt,
		ticket.NotificationCnt,
		ticket.ResolvedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) ListOpenByProject(ctx context.Context, projectID string) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, TicketFilter{
		ProjectID: &projectID,
		Statuses:  []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusEscalated},
		Limit:     1000,
	})
}

func (r *ticketRepository) ListUnresolvedByProject(ctx context.Context, projectID string) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, TicketFilter{
		ProjectID: &projectID,
		Statuses: []domain.TicketStatus{
			domain.TicketStatusPending,
			domain.TicketStatusEscalated,
			domain.TicketStatusAcknowledged,
		},
		Limit: 1000,
	})
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		clauses = append(clauses, fmt.Sprintf("project_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Source != nil {
		args = append(args, *filter.Source)
		clauses = append(clauses, fmt.Sprintf("source=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(source) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ProjectID,
		&ticket.Source,
		&ticket.Status,
		&ticket.EscalationLevel,
		&ticket.Payload,
		&ticket.ParsedData,
		&ticket.Labels,
		&ticket.Title,
		&ticket.Description,
		&ticket.Severity,
		&ticket.Summary,
		&ticket.AckToken,
		&ticket.AcknowledgedAt,
		&ticket.AcknowledgedBy,
		&ticket.LastNotifiedAt,
		&ticket.NotificationCnt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

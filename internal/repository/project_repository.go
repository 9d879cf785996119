package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// ProjectRepository encapsulates project persistence.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	// ListEscalating returns active projects with escalation enabled.
	// Silence windows are evaluated by the caller at tick start.
	ListEscalating(ctx context.Context) ([]domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository instantiates repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

const projectColumns = `id, namespace_id, name, description, notification_group_ids, notification_template_id,
               escalation_enabled, escalation_timeout_minutes, is_active, notify_on_ack, silenced_until,
               created_at, updated_at`

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id=$1`
	var project domain.Project
	if err := scanProject(r.pool.QueryRow(ctx, query, id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListEscalating(ctx context.Context) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE escalation_enabled=TRUE AND is_active=TRUE`
	return r.queryProjects(ctx, query)
}

func (r *projectRepository) List(ctx context.Context) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name ASC`
	return r.queryProjects(ctx, query)
}

func (r *projectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Project
	for rows.Next() {
		var project domain.Project
		if err := scanProject(rows, &project); err != nil {
			return nil, err
		}
		result = append(result, project)
	}
	return result, rows.Err()
}

func scanProject(row pgx.Row, project *domain.Project) error {
	return row.Scan(
		&project.ID,
		&project.NamespaceID,
		&project.Name,
		&project.Description,
		&project.NotificationGroupIDs,
		&project.TemplateID,
		&project.Escalation.Enabled,
		&project.Escalation.TimeoutMinutes,
		&project.IsActive,
		&project.NotifyOnAck,
		&project.SilencedUntil,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
}

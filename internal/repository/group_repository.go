package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// GroupRepository encapsulates notification group persistence.
type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*domain.NotificationGroup, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.NotificationGroup, error)
}

type groupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository instantiates repository.
func NewGroupRepository(pool *pgxpool.Pool) GroupRepository {
	return &groupRepository{pool: pool}
}

const groupColumns = `id, name, description, repeat_interval_minutes, channel_configs, created_at, updated_at`

func (r *groupRepository) GetByID(ctx context.Context, id string) (*domain.NotificationGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM notification_groups WHERE id=$1`
	var group domain.NotificationGroup
	if err := scanGroup(r.pool.QueryRow(ctx, query, id), &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.NotificationGroup, error) {
	result := make(map[string]domain.NotificationGroup, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + groupColumns + ` FROM notification_groups WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var group domain.NotificationGroup
		if err := scanGroup(rows, &group); err != nil {
			return nil, err
		}
		result[group.ID] = group
	}
	return result, rows.Err()
}

func scanGroup(row pgx.Row, group *domain.NotificationGroup) error {
	return row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.RepeatInterval,
		&group.ChannelConfigs,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
}

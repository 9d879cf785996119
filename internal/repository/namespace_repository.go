package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// NamespaceRepository encapsulates namespace persistence.
type NamespaceRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Namespace, error)
}

type namespaceRepository struct {
	pool *pgxpool.Pool
}

// NewNamespaceRepository instantiates repository.
func NewNamespaceRepository(pool *pgxpool.Pool) NamespaceRepository {
	return &namespaceRepository{pool: pool}
}

func (r *namespaceRepository) GetBySlug(ctx context.Context, slug string) (*domain.Namespace, error) {
	const query = `SELECT id, name, slug, created_at, updated_at FROM namespaces WHERE slug=$1`
	var namespace domain.Namespace
	if err := r.pool.QueryRow(ctx, query, slug).Scan(
		&namespace.ID,
		&namespace.Name,
		&namespace.Slug,
		&namespace.CreatedAt,
		&namespace.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &namespace, nil
}

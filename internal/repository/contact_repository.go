package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// ContactRepository encapsulates contact persistence.
type ContactRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.Contact, error)
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository instantiates repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
        SELECT id, name, phones, emails, feishu_webhook_url, note, created_at, updated_at
        FROM contacts WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Contact
	for rows.Next() {
		var contact domain.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.Name,
			&contact.Phones,
			&contact.Emails,
			&contact.FeishuWebhookURL,
			&contact.Note,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	return result, rows.Err()
}

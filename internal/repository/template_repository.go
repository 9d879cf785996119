package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/escalation-service/internal/domain"
)

// ErrTemplateNotBuiltin reports that an upsert was skipped because the name
// is already taken by a non-builtin template.
var ErrTemplateNotBuiltin = errors.New("template name is taken by a non-builtin template")

// TemplateRepository encapsulates notification template persistence.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*domain.NotificationTemplate, error)
	GetByName(ctx context.Context, name string) (*domain.NotificationTemplate, error)
	// UpsertBuiltin seeds or refreshes a builtin template by name. It
	// returns ErrTemplateNotBuiltin when a custom template owns the name.
	UpsertBuiltin(ctx context.Context, template *domain.NotificationTemplate) error
}

type templateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository instantiates repository.
func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepository{pool: pool}
}

const templateColumns = `id, name, description, is_builtin, feishu_card, email_subject, email_body, sms_message, created_at, updated_at`

func (r *templateRepository) GetByID(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *templateRepository) GetByName(ctx context.Context, name string) (*domain.NotificationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE name=$1`
	return r.fetchSingle(ctx, query, name)
}

func (r *templateRepository) UpsertBuiltin(ctx context.Context, template *domain.NotificationTemplate) error {
	const query = `
        INSERT INTO notification_templates (id, name, description, is_builtin, feishu_card, email_subject, email_body, sms_message)
        VALUES (gen_random_uuid(),$1,$2,TRUE,$3,$4,$5,$6)
        ON CONFLICT (name) DO UPDATE SET
            description=EXCLUDED.description,
            feishu_card=EXCLUDED.feishu_card,
            email_subject=EXCLUDED.email_subject,
            email_body=EXCLUDED.email_body,
            sms_message=EXCLUDED.sms_message,
            updated_at=NOW()
        WHERE notification_templates.is_builtin
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		template.Name,
		template.Description,
		template.FeishuCard,
		template.EmailSubject,
		template.EmailBody,
		template.SMSMessage,
	).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
	return builtinUpsertError(err)
}

// builtinUpsertError maps the empty RETURNING set, produced when the
// is_builtin guard suppresses the conflict update, to ErrTemplateNotBuiltin.
func builtinUpsertError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTemplateNotBuiltin
	}
	return err
}

func (r *templateRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.NotificationTemplate, error) {
	var template domain.NotificationTemplate
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&template.IsBuiltin,
		&template.FeishuCard,
		&template.EmailSubject,
		&template.EmailBody,
		&template.SMSMessage,
		&template.CreatedAt,
		&template.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &template, nil
}

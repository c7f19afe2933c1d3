package template

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateTemplate(ctx context.Context, tpl *Template) error
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error)
	ListTemplates(ctx context.Context, ownerID *uuid.UUID) ([]Template, error)
	UpdateTemplate(ctx context.Context, tpl *Template) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateTemplate(ctx context.Context, tpl *Template) error {
	query := `
		INSERT INTO templates (
			id, owner_id, name, type, background_key, fields
		) VALUES (
			:id, :owner_id, :name, :type, :background_key, :fields
		)`
	_, err := r.db.NamedExecContext(ctx, query, tpl)
	return err
}

func (r *postgresRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	var tpl Template
	err := r.db.GetContext(ctx, &tpl, "SELECT * FROM templates WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &tpl, err
}

func (r *postgresRepository) ListTemplates(ctx context.Context, ownerID *uuid.UUID) ([]Template, error) {
	var templates []Template
	if ownerID != nil {
		err := r.db.SelectContext(ctx, &templates, "SELECT * FROM templates WHERE owner_id = $1 ORDER BY created_at DESC", *ownerID)
		return templates, err
	}
	err := r.db.SelectContext(ctx, &templates, "SELECT * FROM templates ORDER BY created_at DESC")
	return templates, err
}

func (r *postgresRepository) UpdateTemplate(ctx context.Context, tpl *Template) error {
	query := `
		UPDATE templates SET
			name = :name,
			background_key = :background_key,
			fields = :fields,
			updated_at = NOW()
		WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, tpl)
	return err
}

func (r *postgresRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM templates WHERE id = $1", id)
	return err
}

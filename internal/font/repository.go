package font

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateFont(ctx context.Context, f *Font) error
	GetFontByID(ctx context.Context, id uuid.UUID) (*Font, error)
	ListFonts(ctx context.Context, ownerID *uuid.UUID) ([]Font, error)
	DeleteFont(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateFont(ctx context.Context, f *Font) error {
	query := `
		INSERT INTO fonts (
			id, owner_id, name, format, storage_key, file_size
		) VALUES (
			:id, :owner_id, :name, :format, :storage_key, :file_size
		)`
	_, err := r.db.NamedExecContext(ctx, query, f)
	return err
}

func (r *postgresRepository) GetFontByID(ctx context.Context, id uuid.UUID) (*Font, error) {
	var f Font
	err := r.db.GetContext(ctx, &f, "SELECT * FROM fonts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &f, err
}

func (r *postgresRepository) ListFonts(ctx context.Context, ownerID *uuid.UUID) ([]Font, error) {
	var fonts []Font
	if ownerID != nil {
		err := r.db.SelectContext(ctx, &fonts, "SELECT * FROM fonts WHERE owner_id = $1 ORDER BY uploaded_at DESC", *ownerID)
		return fonts, err
	}
	err := r.db.SelectContext(ctx, &fonts, "SELECT * FROM fonts ORDER BY uploaded_at DESC")
	return fonts, err
}

func (r *postgresRepository) DeleteFont(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM fonts WHERE id = $1", id)
	return err
}

package generation

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, requestedBy *uuid.UUID) ([]Job, error)
	ListPendingJobs(ctx context.Context, limit int) ([]Job, error)

	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, archiveKey string, certificateCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Requeue(ctx context.Context, id uuid.UUID, message string) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateJob(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO generation_jobs (
			id, template_id, requested_by, dataset_key, dataset_name, tier, status
		) VALUES (
			:id, :template_id, :requested_by, :dataset_key, :dataset_name, :tier, :status
		)`
	_, err := r.db.NamedExecContext(ctx, query, job)
	return err
}

func (r *postgresRepository) GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	err := r.db.GetContext(ctx, &job, "SELECT * FROM generation_jobs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &job, err
}

func (r *postgresRepository) ListJobs(ctx context.Context, requestedBy *uuid.UUID) ([]Job, error) {
	var jobs []Job
	if requestedBy != nil {
		err := r.db.SelectContext(ctx, &jobs, "SELECT * FROM generation_jobs WHERE requested_by = $1 ORDER BY created_at DESC", *requestedBy)
		return jobs, err
	}
	err := r.db.SelectContext(ctx, &jobs, "SELECT * FROM generation_jobs ORDER BY created_at DESC")
	return jobs, err
}

func (r *postgresRepository) ListPendingJobs(ctx context.Context, limit int) ([]Job, error) {
	var jobs []Job
	err := r.db.SelectContext(ctx, &jobs,
		"SELECT * FROM generation_jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1", limit)
	return jobs, err
}

func (r *postgresRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_jobs SET
			status = 'processing',
			attempts = attempts + 1,
			updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *postgresRepository) MarkCompleted(ctx context.Context, id uuid.UUID, archiveKey string, certificateCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_jobs SET
			status = 'completed',
			archive_key = $2,
			certificate_count = $3,
			error_message = '',
			updated_at = NOW()
		WHERE id = $1`, id, archiveKey, certificateCount)
	return err
}

func (r *postgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_jobs SET
			status = 'failed',
			error_message = $2,
			updated_at = NOW()
		WHERE id = $1`, id, message)
	return err
}

func (r *postgresRepository) Requeue(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_jobs SET
			status = 'pending',
			error_message = $2,
			updated_at = NOW()
		WHERE id = $1`, id, message)
	return err
}

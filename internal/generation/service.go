package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
	"certmint/certificate-portal/certificate-portal-backend/internal/dataset"
	"certmint/certificate-portal/certificate-portal-backend/internal/template"
	"certmint/certificate-portal/certificate-portal-backend/pkg/storage"
)

const archiveURLTTL = 15 * time.Minute

type Service interface {
	CreateGeneration(ctx context.Context, req CreateRequest) (*Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, requestedBy *uuid.UUID) ([]Job, error)
	ArchiveURL(ctx context.Context, id uuid.UUID) (string, error)

	// Execute runs the full generation pipeline for one job. It is called by
	// the in-process queue and by the polling worker; both rely on renders
	// being idempotent, so re-running a job id is always safe.
	Execute(ctx context.Context, jobID uuid.UUID) error
}

type CreateRequest struct {
	TemplateID  uuid.UUID
	RequestedBy uuid.UUID
	Tier        certificate.PackageTier
	DatasetName string
	Dataset     io.Reader
}

type generationService struct {
	repo      Repository
	templates template.Service
	fonts     certificate.FontResolver
	blobs     storage.BlobStorage
	queue     *Queue
	workDir   string
	logger    *zap.Logger
}

func NewService(repo Repository, templates template.Service, fonts certificate.FontResolver, blobs storage.BlobStorage, queue *Queue, workDir string, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &generationService{
		repo:      repo,
		templates: templates,
		fonts:     fonts,
		blobs:     blobs,
		queue:     queue,
		workDir:   workDir,
		logger:    logger,
	}
}

func (s *generationService) CreateGeneration(ctx context.Context, req CreateRequest) (*Job, error) {
	tier := req.Tier
	if tier == "" {
		tier = certificate.TierFree
	}

	jobID := uuid.New()
	datasetKey := fmt.Sprintf("datasets/%s/%s", jobID, req.DatasetName)
	if err := s.blobs.Upload(ctx, datasetKey, req.Dataset); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          jobID,
		TemplateID:  req.TemplateID,
		RequestedBy: req.RequestedBy,
		DatasetKey:  datasetKey,
		DatasetName: req.DatasetName,
		Tier:        tier,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.dispatch(job.ID)
	return job, nil
}

// dispatch hands the job to the in-process queue. A full queue is not an
// error: the job row stays pending and the polling worker picks it up.
func (s *generationService) dispatch(jobID uuid.UUID) {
	if s.queue == nil {
		return
	}
	err := s.queue.Submit("generation:"+jobID.String(), func(ctx context.Context) error {
		err := s.Execute(ctx, jobID)
		if err != nil && !retryable(err) {
			s.failJob(jobID, err)
			return nil
		}
		return err
	}, func(err error) {
		s.failJob(jobID, err)
	})
	if err != nil {
		s.logger.Warn("generation queue full, job left for polling worker",
			zap.String("job_id", jobID.String()))
	}
}

func (s *generationService) failJob(jobID uuid.UUID, cause error) {
	msg := "generation failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.repo.MarkFailed(context.Background(), jobID, msg); err != nil {
		s.logger.Error("failed to mark job failed",
			zap.String("job_id", jobID.String()),
			zap.Error(err))
	}
}

func (s *generationService) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.repo.GetJobByID(ctx, id)
}

func (s *generationService) ListJobs(ctx context.Context, requestedBy *uuid.UUID) ([]Job, error) {
	return s.repo.ListJobs(ctx, requestedBy)
}

func (s *generationService) ArchiveURL(ctx context.Context, id uuid.UUID) (string, error) {
	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", fmt.Errorf("generation job %s not found", id)
	}
	if job.Status != StatusCompleted || job.ArchiveKey == "" {
		return "", fmt.Errorf("generation job %s is %s, archive not available", id, job.Status)
	}
	return s.blobs.PresignedURL(ctx, job.ArchiveKey, archiveURLTTL)
}

func (s *generationService) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("generation job %s not found", jobID)
	}
	if job.Status == StatusCompleted {
		return nil
	}
	if !CanTransition(job.Status, StatusProcessing) {
		return fmt.Errorf("generation job %s cannot start from status %s", jobID, job.Status)
	}

	if err := s.repo.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	resolved, err := s.templates.ResolveForRender(ctx, job.TemplateID)
	if err != nil {
		return err
	}

	source, err := s.loadDataset(ctx, job)
	if err != nil {
		return err
	}

	registry := certificate.NewRegistry()
	registry.Register(certificate.TypeImage, certificate.NewImageRenderer(s.fonts, s.logger))

	orchestrator := certificate.NewOrchestrator(registry, s.workDir, s.logger)
	batch, err := orchestrator.GenerateBatch(ctx, resolved, source, certificate.Options{Tier: job.Tier})
	if err != nil {
		return err
	}

	archiveKey := fmt.Sprintf("archives/%s.zip", job.ID)
	if err := s.uploadArchive(ctx, batch.ArchivePath, archiveKey); err != nil {
		return err
	}

	if err := s.repo.MarkCompleted(ctx, jobID, archiveKey, len(batch.Certificates)); err != nil {
		return err
	}

	// Local work products are only reaped eagerly on success; failed batches
	// stay on disk for the stale-batch reaper and postmortems.
	os.RemoveAll(batch.Dir)
	os.Remove(batch.ArchivePath)

	s.logger.Info("generation job completed",
		zap.String("job_id", jobID.String()),
		zap.Int("certificates", len(batch.Certificates)),
		zap.String("archive_key", archiveKey))
	return nil
}

func (s *generationService) loadDataset(ctx context.Context, job *Job) (certificate.RecordSource, error) {
	reader, err := s.blobs.Download(ctx, job.DatasetKey)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", job.DatasetKey, err)
	}
	defer reader.Close()

	return dataset.Parse(job.DatasetName, reader)
}

func (s *generationService) uploadArchive(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close()
	return s.blobs.Upload(ctx, key, f)
}

// retryable reports whether a generation failure is worth re-running.
// Validation problems (empty dataset, unknown format, unsupported type) fail
// the same way every time; infrastructure errors may be transient.
func retryable(err error) bool {
	if errors.Is(err, certificate.ErrNoRecords) ||
		errors.Is(err, dataset.ErrUnsupportedFormat) ||
		errors.Is(err, dataset.ErrMissingHeader) {
		return false
	}
	return true
}

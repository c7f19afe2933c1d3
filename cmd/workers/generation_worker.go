package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"certmint/certificate-portal/certificate-portal-backend/internal/config"
	"certmint/certificate-portal/certificate-portal-backend/internal/font"
	"certmint/certificate-portal/certificate-portal-backend/internal/generation"
	"certmint/certificate-portal/certificate-portal-backend/internal/template"
	"certmint/certificate-portal/certificate-portal-backend/pkg/storage"
)

// GenerationWorker drains pending generation jobs from the database. It backs
// up the API's in-process queue: jobs the API could not dispatch (queue full,
// process restart) are picked up here.
type GenerationWorker struct {
	repo    generation.Repository
	service generation.Service
	logger  *zap.Logger
	config  WorkerConfig
	done    chan struct{}
}

// WorkerConfig configuration for the generation worker
type WorkerConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxConcurrent    int
	MaxAttempts      int
	ExecutionTimeout time.Duration
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:     30 * time.Second,
		BatchSize:        10,
		MaxConcurrent:    3,
		MaxAttempts:      3,
		ExecutionTimeout: 30 * time.Minute,
	}
}

func NewGenerationWorker(repo generation.Repository, service generation.Service, logger *zap.Logger, config WorkerConfig) *GenerationWorker {
	return &GenerationWorker{
		repo:    repo,
		service: service,
		logger:  logger,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start starts the polling loop
func (w *GenerationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting generation worker",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("max_concurrent", w.config.MaxConcurrent))

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.processPendingJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Generation worker shutting down")
			return nil
		case <-w.done:
			w.logger.Info("Generation worker stopped")
			return nil
		case <-ticker.C:
			w.processPendingJobs(ctx)
		}
	}
}

// Stop stops the worker
func (w *GenerationWorker) Stop() {
	close(w.done)
}

func (w *GenerationWorker) processPendingJobs(ctx context.Context) {
	jobs, err := w.repo.ListPendingJobs(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list pending jobs", zap.Error(err))
		return
	}

	if len(jobs) == 0 {
		return
	}

	w.logger.Info("Processing pending generation jobs", zap.Int("count", len(jobs)))

	sem := make(chan struct{}, w.config.MaxConcurrent)

	for i := range jobs {
		sem <- struct{}{}

		go func(job generation.Job) {
			defer func() { <-sem }()

			w.processJob(ctx, job)
		}(jobs[i])
	}

	for i := 0; i < w.config.MaxConcurrent; i++ {
		sem <- struct{}{}
	}
}

func (w *GenerationWorker) processJob(ctx context.Context, job generation.Job) {
	w.logger.Info("Processing generation job",
		zap.String("job_id", job.ID.String()),
		zap.String("template_id", job.TemplateID.String()),
		zap.Int("attempts", job.Attempts))

	startTime := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, w.config.ExecutionTimeout)
	defer cancel()

	err := w.service.Execute(execCtx, job.ID)
	duration := time.Since(startTime)

	if err != nil {
		w.logger.Error("Generation job failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
			zap.Duration("duration", duration))

		// Attempts was incremented when the job went to processing.
		if job.Attempts+1 >= w.config.MaxAttempts {
			w.repo.MarkFailed(ctx, job.ID, err.Error())
		} else {
			w.repo.Requeue(ctx, job.ID, err.Error())
		}
		return
	}

	w.logger.Info("Generation job completed",
		zap.String("job_id", job.ID.String()),
		zap.Duration("duration", duration))
}

func main() {
	godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	logger.Info("Connected to database")

	var blobs storage.BlobStorage
	if cfg.Storage.Bucket != "" {
		blobs, err = storage.NewS3Storage(context.Background(), cfg.Storage.Bucket)
	} else {
		blobs, err = storage.NewLocalStorage(cfg.Storage.LocalRoot)
	}
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Generation.WorkDir, 0o755); err != nil {
		logger.Fatal("Failed to create batch work directory", zap.Error(err))
	}

	templateService := template.NewService(template.NewRepository(db), blobs)
	fontService := font.NewService(font.NewRepository(db), blobs)
	generationRepo := generation.NewRepository(db)

	// The worker executes jobs directly; no in-process queue is wired here.
	generationService := generation.NewService(
		generationRepo, templateService, fontService, blobs, nil,
		cfg.Generation.WorkDir, logger,
	)

	worker := NewGenerationWorker(generationRepo, generationService, logger, DefaultWorkerConfig())

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	logger.Info("Generation worker starting")
	if err := worker.Start(ctx); err != nil {
		logger.Error("Worker error", zap.Error(err))
	}

	logger.Info("Generation worker stopped")
}

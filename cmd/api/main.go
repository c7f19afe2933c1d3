package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
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

func main() {
	godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("host", cfg.Database.Host))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	blobs, err := buildStorage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Generation.WorkDir, 0o755); err != nil {
		logger.Fatal("Failed to create batch work directory", zap.Error(err))
	}

	// Module wiring
	templateRepo := template.NewRepository(db)
	templateService := template.NewService(templateRepo, blobs)
	templateHandler := template.NewHandler(templateService)

	fontRepo := font.NewRepository(db)
	fontService := font.NewService(fontRepo, blobs)
	fontHandler := font.NewHandler(fontService)

	queue := generation.NewQueue(
		cfg.Generation.Workers,
		cfg.Generation.QueueSize,
		generation.RetryPolicy{
			MaxAttempts:    cfg.Generation.RetryAttempts,
			InitialBackoff: cfg.Generation.RetryBackoff,
		},
		logger,
	)

	generationRepo := generation.NewRepository(db)
	generationService := generation.NewService(
		generationRepo, templateService, fontService, blobs, queue,
		cfg.Generation.WorkDir, logger,
	)
	generationHandler := generation.NewHandler(generationService)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	queue.Start(queueCtx)

	reaper := generation.NewReaper(cfg.Generation.WorkDir, cfg.Generation.BatchMaxAge, logger)
	if err := reaper.Start(); err != nil {
		logger.Fatal("Failed to start batch reaper", zap.Error(err))
	}
	defer reaper.Stop()

	// Setup Router
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	{
		templateHandler.RegisterRoutes(api)
		fontHandler.RegisterRoutes(api)
		generationHandler.RegisterRoutes(api)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	queueCancel()
	logger.Info("Server exiting")
}

func buildStorage(cfg *config.Config) (storage.BlobStorage, error) {
	if cfg.Storage.Bucket != "" {
		return storage.NewS3Storage(context.Background(), cfg.Storage.Bucket)
	}
	return storage.NewLocalStorage(cfg.Storage.LocalRoot)
}

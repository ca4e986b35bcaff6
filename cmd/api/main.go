package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/payment-ingest/internal/api/handlers"
	"github.com/dvloznov/payment-ingest/internal/api/middleware"
	"github.com/dvloznov/payment-ingest/internal/config"
	infraBQ "github.com/dvloznov/payment-ingest/internal/infra/bigquery"
	"github.com/dvloznov/payment-ingest/internal/jobs"
	"github.com/dvloznov/payment-ingest/internal/jobs/inmemory"
	"github.com/dvloznov/payment-ingest/internal/logger"
	"github.com/dvloznov/payment-ingest/internal/pipeline"
	"github.com/dvloznov/payment-ingest/internal/storage"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log = logger.WithLevel(log, cfg.LogLevel)

	if cfg.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - payment uploads will fail")
	}

	ctx := context.Background()

	// File store and payment sink
	fileStore, err := storage.NewGCSFileStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create file store")
	}
	defer fileStore.Close()

	paymentRepo, err := infraBQ.NewBigQueryPaymentRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create payment repository")
	}
	defer paymentRepo.Close()

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.Workers, jobStore)

	// Ingestion pipeline
	resolver := pipeline.NewAPILayerResolver(cfg.FX)
	sink := infraBQ.NewPaymentSink(paymentRepo)
	processor := pipeline.NewRowProcessor(resolver, sink, log)
	ingestor := pipeline.NewIngestor(fileStore, processor, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestPaymentsJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		_, err := ingestor.Run(ctx, pipeline.SourceFile{
			Bucket: ingestJob.Bucket,
			Object: ingestJob.Object,
		})
		return err
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	paymentsHandler := handlers.NewPaymentsHandler(fileStore, jobQueue, paymentRepo, cfg.Bucket, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		paymentsHandler.UploadForm(w, r)
	})

	mux.HandleFunc("/api/payments/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			paymentsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/payments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			paymentsHandler.ListPayments(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

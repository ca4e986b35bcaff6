package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

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

	ctx := context.Background()

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

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.Workers, jobStore)

	resolver := pipeline.NewAPILayerResolver(cfg.FX)
	sink := infraBQ.NewPaymentSink(paymentRepo)
	processor := pipeline.NewRowProcessor(resolver, sink, log)
	ingestor := pipeline.NewIngestor(fileStore, processor, log)

	log.Info().Msg("Starting worker service")

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestPaymentsJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("bucket", ingestJob.Bucket).
			Str("object", ingestJob.Object).
			Msg("Processing ingestion job")

		result, err := ingestor.Run(ctx, pipeline.SourceFile{
			Bucket: ingestJob.Bucket,
			Object: ingestJob.Object,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", ingestJob.JobID).
				Msg("Ingestion failed")
			return err
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Int("successes", result.SuccessCount).
			Int("failures", result.FailureCount).
			Msg("Ingestion completed")

		return nil
	}

	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

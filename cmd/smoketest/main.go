// Command smoketest verifies the service's external collaborators: it
// round-trips a test object through the blob store, then ingests a
// one-row payment CSV end to end (rate API and BigQuery sink included).
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/payment-ingest/internal/config"
	infraBQ "github.com/dvloznov/payment-ingest/internal/infra/bigquery"
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
	if cfg.Bucket == "" {
		log.Fatal().Msg("GCS_BUCKET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fileStore, err := storage.NewGCSFileStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create file store")
	}
	defer fileStore.Close()

	log.Info().Msg("Testing storage roundtrip...")
	if err := storageRoundtrip(ctx, fileStore, cfg.Bucket); err != nil {
		log.Fatal().Err(err).Msg("Storage roundtrip failed")
	}
	log.Info().Msg("Storage roundtrip OK")

	paymentRepo, err := infraBQ.NewBigQueryPaymentRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create payment repository")
	}
	defer paymentRepo.Close()

	resolver := pipeline.NewAPILayerResolver(cfg.FX)
	sink := infraBQ.NewPaymentSink(paymentRepo)
	processor := pipeline.NewRowProcessor(resolver, sink, log)
	ingestor := pipeline.NewIngestor(fileStore, processor, log)

	log.Info().Msg("Testing end-to-end ingestion with a one-row CSV...")

	testCSV := "customer_id,customer_name,customer_email,amount,currency,reference_no,date_time\n" +
		fmt.Sprintf("TEST001,Test User,test@example.com,100,USD,REF-TEST-001,%s\n", time.Now().Format("2006-01-02 15:04:05"))

	object := fmt.Sprintf("test/smoketest-%d.csv", time.Now().Unix())
	if err := fileStore.Put(ctx, cfg.Bucket, object, bytes.NewReader([]byte(testCSV))); err != nil {
		log.Fatal().Err(err).Msg("Failed to upload test CSV")
	}

	result, err := ingestor.Run(ctx, pipeline.SourceFile{Bucket: cfg.Bucket, Object: object})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
	if result.SuccessCount != 1 || result.FailureCount != 0 {
		log.Error().
			Int("successes", result.SuccessCount).
			Int("failures", result.FailureCount).
			Msg("Unexpected ingestion result")
		os.Exit(1)
	}

	log.Info().Msg("End-to-end ingestion OK")
	log.Info().Msg("Smoke test complete")
}

func storageRoundtrip(ctx context.Context, fileStore *storage.GCSFileStore, bucket string) error {
	object := fmt.Sprintf("test/connection-test-%d.txt", time.Now().Unix())
	content := []byte("connection test at " + time.Now().Format(time.RFC3339))

	if err := fileStore.Put(ctx, bucket, object, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	exists, err := fileStore.Exists(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("object missing after put")
	}

	data, err := fileStore.Fetch(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if !bytes.Equal(data, content) {
		return fmt.Errorf("content mismatch after roundtrip")
	}

	if err := fileStore.Delete(ctx, bucket, object); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

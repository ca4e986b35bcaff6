package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/payment-ingest/internal/storage"
	"github.com/rs/zerolog"
)

// Ingestor drives one file's ingestion end to end: fetch, decode, process
// every row, clean up, summarize.
//
// A returned error is a job-level failure: the source file was missing or
// its content had no header to decode. In that case no rows have been
// processed and no deletion is attempted; the queue's retry/dead-letter
// policy takes over. Row-level failures never surface as an error here -
// they are counted in the BatchResult and the job completes.
type Ingestor struct {
	files storage.FileStore
	proc  *RowProcessor
	log   zerolog.Logger
}

// NewIngestor creates a batch ingestor.
func NewIngestor(files storage.FileStore, proc *RowProcessor, log zerolog.Logger) *Ingestor {
	return &Ingestor{files: files, proc: proc, log: log}
}

// Run processes the given file to completion. Rows are processed strictly
// sequentially; on context cancellation the in-flight row completes, the
// remaining rows are left unprocessed and ctx's error is returned so the
// queue redelivers the file.
func (in *Ingestor) Run(ctx context.Context, src SourceFile) (BatchResult, error) {
	log := in.log.With().Str("bucket", src.Bucket).Str("object", src.Object).Logger()
	log.Info().Msg("Processing payment file")

	var result BatchResult

	exists, err := in.files.Exists(ctx, src.Bucket, src.Object)
	if err != nil {
		return result, fmt.Errorf("stat source file: %w", err)
	}
	if !exists {
		log.Error().Msg("Source file not found")
		return result, fmt.Errorf("source file %s: %w", src, storage.ErrObjectNotFound)
	}

	content, err := in.files.Fetch(ctx, src.Bucket, src.Object)
	if err != nil {
		return result, fmt.Errorf("fetch source file: %w", err)
	}

	dec, err := NewDecoder(content)
	if err != nil {
		return result, fmt.Errorf("decode source file: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Warn().
				Int("successes", result.SuccessCount).
				Int("failures", result.FailureCount).
				Msg("Ingestion cancelled mid-batch, file kept for redelivery")
			return result, ctx.Err()
		default:
		}

		cand := dec.Next()
		if cand == nil {
			break
		}

		if out := in.proc.Process(ctx, src, cand); out.Err != nil {
			result.FailureCount++
		} else {
			result.SuccessCount++
		}
	}

	// Best-effort cleanup, regardless of row failures. Deletion is not
	// transactional with the persisted writes.
	if err := in.files.Delete(ctx, src.Bucket, src.Object); err != nil {
		log.Warn().Err(err).Msg("Failed to delete source file")
	}

	log.Info().
		Int("successes", result.SuccessCount).
		Int("failures", result.FailureCount).
		Msg("Payment file processing complete")

	return result, nil
}

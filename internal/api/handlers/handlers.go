package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/payment-ingest/internal/api/middleware"
	"github.com/dvloznov/payment-ingest/internal/bigquery"
	"github.com/dvloznov/payment-ingest/internal/jobs"
	"github.com/dvloznov/payment-ingest/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxUploadBytes is the upload size limit (2048 KB).
const MaxUploadBytes = 2048 << 10

// PaymentsHandler handles payment upload and read endpoints.
type PaymentsHandler struct {
	files     storage.FileStore
	publisher jobs.Publisher
	repo      bigquery.PaymentRepository
	bucket    string
	log       zerolog.Logger
}

// NewPaymentsHandler creates a new payments handler.
func NewPaymentsHandler(files storage.FileStore, publisher jobs.Publisher, repo bigquery.PaymentRepository, bucket string, log zerolog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		files:     files,
		publisher: publisher,
		repo:      repo,
		bucket:    bucket,
		log:       log,
	}
}

// writeStatus writes the upload endpoint's response envelope.
func writeStatus(w http.ResponseWriter, code int, status, message string) {
	middleware.WriteJSON(w, code, map[string]string{
		"status":  status,
		"message": message,
	})
}

// Upload handles POST /api/payments/upload.
//
// Accepts a multipart "file" field (.csv or .txt, at most MaxUploadBytes),
// stores it in the bucket and enqueues an ingestion job. The caller only
// ever sees submission success (202) or a synchronous failure (400/500);
// row-level outcomes are visible in the job log and the jobs API, never here.
func (h *PaymentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+4096)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeStatus(w, http.StatusBadRequest, "error", "The file may not be greater than 2048 kilobytes.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "error", "The file field is required.")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" && ext != ".txt" {
		writeStatus(w, http.StatusBadRequest, "error", "The file must be of type csv or txt.")
		return
	}
	if header.Size > MaxUploadBytes {
		writeStatus(w, http.StatusBadRequest, "error", "The file may not be greater than 2048 kilobytes.")
		return
	}

	object := fmt.Sprintf("uploads/payments/%s/%s%s", time.Now().Format("2006/01/02"), uuid.New().String(), ext)

	if err := h.files.Put(ctx, h.bucket, object, file); err != nil {
		h.log.Error().Err(err).Str("object", object).Msg("Failed to store uploaded file")
		writeStatus(w, http.StatusInternalServerError, "error", fmt.Sprintf("An error occurred: %s", err))
		return
	}

	job := &jobs.IngestPaymentsJob{
		Bucket: h.bucket,
		Object: object,
	}
	if err := h.publisher.PublishIngestPayments(ctx, job); err != nil {
		h.log.Error().Err(err).Str("object", object).Msg("Failed to enqueue ingestion job")
		writeStatus(w, http.StatusInternalServerError, "error", fmt.Sprintf("An error occurred: %s", err))
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("object", object).
		Str("filename", header.Filename).
		Int64("bytes", header.Size).
		Msg("Payment file uploaded and job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": "File is being processed in the background.",
		"job_id":  job.JobID,
	})
}

// ListPayments handles GET /api/payments.
func (h *PaymentsHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	payments, err := h.repo.ListRecentPayments(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list payments")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	if payments == nil {
		payments = []*bigquery.PaymentRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Object: query.Get("object"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

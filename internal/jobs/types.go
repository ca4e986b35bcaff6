package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestPayments represents a payment CSV ingestion job.
	JobTypeIngestPayments JobType = "ingest_payments"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed all delivery attempts.
	// Failed jobs remain in the store for operator inspection; this is
	// the service's dead-letter channel.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being redelivered.
	JobStatusRetrying JobStatus = "retrying"
)

// IngestPaymentsJob references a previously uploaded payment CSV file.
// The queue provides at-least-once delivery: the same file reference may
// be redelivered after a handler error or worker crash, so ingestion must
// tolerate reprocessing.
type IngestPaymentsJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Bucket is the storage backend holding the uploaded file.
	Bucket string `json:"bucket"`

	// Object is the path of the uploaded CSV within the bucket.
	Object string `json:"object"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been redelivered.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of redeliveries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *IngestPaymentsJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *IngestPaymentsJob) GetType() JobType {
	return JobTypeIngestPayments
}

// GetStatus implements the Job interface.
func (j *IngestPaymentsJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishIngestPayments publishes a payment ingestion job.
	PublishIngestPayments(ctx context.Context, job *IngestPaymentsJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// A returned error marks the delivery failed and triggers redelivery.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestPaymentsJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestPaymentsJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestPaymentsJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Object filters jobs by uploaded file path.
	Object string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

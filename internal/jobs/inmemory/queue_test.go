package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/payment-ingest/internal/jobs"
)

// waitForStatus polls the store until the job reaches the wanted status.
func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus, timeout time.Duration) *jobs.IngestPaymentsJob {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s (last seen: %+v)", jobID, want, job)
	return nil
}

func TestQueue_PublishSetsDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	job := &jobs.IngestPaymentsJob{Bucket: "b", Object: "uploads/f.csv"}
	if err := q.PublishIngestPayments(context.Background(), job); err != nil {
		t.Fatalf("PublishIngestPayments failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("JobID must be assigned on publish")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", job.MaxRetries)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt must be set")
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("job not saved to store: %v", err)
	}
	if saved.Object != "uploads/f.csv" {
		t.Errorf("stored object = %q", saved.Object)
	}
}

func TestQueue_SuccessfulJobCompletes(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var handled int32
	handler := func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.IngestPaymentsJob{Bucket: "b", Object: "f.csv"}
	if err := q.PublishIngestPayments(context.Background(), job); err != nil {
		t.Fatalf("PublishIngestPayments failed: %v", err)
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted, 2*time.Second)
	if n := atomic.LoadInt32(&handled); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
	if final.StartedAt == nil || final.CompletedAt == nil {
		t.Error("completed job must carry start and completion timestamps")
	}
	if final.Error != "" {
		t.Errorf("completed job has error %q", final.Error)
	}
}

func TestQueue_FailedJobRedeliveredThenDeadLettered(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var deliveries int32
	handler := func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&deliveries, 1)
		return errors.New("ingestion blew up")
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.IngestPaymentsJob{Bucket: "b", Object: "f.csv", MaxRetries: 1}
	if err := q.PublishIngestPayments(context.Background(), job); err != nil {
		t.Fatalf("PublishIngestPayments failed: %v", err)
	}

	// One initial delivery plus one redelivery after the 1s backoff.
	final := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed, 5*time.Second)
	if n := atomic.LoadInt32(&deliveries); n != 2 {
		t.Errorf("handler called %d times, want 2", n)
	}
	if final.Error == "" {
		t.Error("dead-lettered job must keep the last error")
	}
	if final.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", final.RetryCount)
	}
}

func TestQueue_ExhaustedRetriesDeadLetterImmediately(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		return errors.New("still broken")
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// RetryCount already at the limit, so a failure dead-letters without
	// another redelivery.
	job := &jobs.IngestPaymentsJob{Bucket: "b", Object: "f.csv", MaxRetries: 1, RetryCount: 1}
	if err := q.PublishIngestPayments(context.Background(), job); err != nil {
		t.Fatalf("PublishIngestPayments failed: %v", err)
	}

	waitForStatus(t, store, job.JobID, jobs.JobStatusFailed, 2*time.Second)
}

func TestQueue_PublishAfterStopFails(t *testing.T) {
	q := NewQueue(10, 1, NewStore())
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	err := q.PublishIngestPayments(context.Background(), &jobs.IngestPaymentsJob{Bucket: "b", Object: "f.csv"})
	if err == nil {
		t.Fatal("publishing to a stopped queue must fail")
	}
}

func TestQueue_StopWaitsForInFlightJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)

	started := make(chan struct{})
	var finished int32
	handler := func(ctx context.Context, job jobs.Job) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.IngestPaymentsJob{Bucket: "b", Object: "f.csv"}
	if err := q.PublishIngestPayments(context.Background(), job); err != nil {
		t.Fatalf("PublishIngestPayments failed: %v", err)
	}

	<-started
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Error("Stop must wait for the in-flight job to finish")
	}
}

package bigquery

import (
	"context"
	"testing"
	"time"

	bq "github.com/dvloznov/payment-ingest/internal/bigquery"
	"github.com/dvloznov/payment-ingest/internal/pipeline"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	inserted []*bq.PaymentRecord
}

func (f *fakeRepo) InsertPayment(ctx context.Context, record *bq.PaymentRecord) error {
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeRepo) ListRecentPayments(ctx context.Context, limit int) ([]*bq.PaymentRecord, error) {
	return f.inserted, nil
}

func (f *fakeRepo) Close() error { return nil }

func samplePayment() *pipeline.NormalizedPayment {
	return &pipeline.NormalizedPayment{
		CustomerID:      "C001",
		CustomerName:    "Alice",
		CustomerEmail:   "alice@example.com",
		Amount:          decimal.RequireFromString("100"),
		Currency:        "EUR",
		ReferenceNo:     "REF-1",
		USDAmount:       decimal.RequireFromString("125"),
		TransactionDate: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		SourceBucket:    "b",
		SourceObject:    "uploads/f.csv",
		SourceLine:      2,
	}
}

func TestPaymentID_Deterministic(t *testing.T) {
	p := samplePayment()
	if PaymentID(p) != PaymentID(p) {
		t.Error("the same row must always map to the same payment ID")
	}

	other := samplePayment()
	other.SourceLine = 3
	if PaymentID(p) == PaymentID(other) {
		t.Error("different lines of the same file must get distinct IDs")
	}

	otherFile := samplePayment()
	otherFile.SourceObject = "uploads/g.csv"
	if PaymentID(p) == PaymentID(otherFile) {
		t.Error("the same line of different files must get distinct IDs")
	}
}

func TestPaymentSink_Create(t *testing.T) {
	repo := &fakeRepo{}
	sink := NewPaymentSink(repo)

	p := samplePayment()
	if err := sink.Create(context.Background(), p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(repo.inserted))
	}

	rec := repo.inserted[0]
	if rec.PaymentID != PaymentID(p) {
		t.Errorf("PaymentID = %q, want the deterministic row ID", rec.PaymentID)
	}
	if !rec.USDAmount.Equal(p.USDAmount) {
		t.Errorf("USDAmount = %s, want %s", rec.USDAmount, p.USDAmount)
	}
	if rec.TransactionDay.String() != "2024-03-01" {
		t.Errorf("TransactionDay = %s, want 2024-03-01", rec.TransactionDay)
	}
	if rec.SourceObject != "uploads/f.csv" {
		t.Errorf("SourceObject = %q", rec.SourceObject)
	}
	if rec.IngestedAt.IsZero() {
		t.Error("IngestedAt must be set")
	}
}

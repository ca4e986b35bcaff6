package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/payment-ingest/internal/bigquery"
	"github.com/dvloznov/payment-ingest/internal/pipeline"
	"github.com/google/uuid"
)

// paymentNamespace is the UUIDv5 namespace for deterministic payment IDs.
var paymentNamespace = uuid.MustParse("8f4b2f6e-3c41-4a8c-9b4e-2d6a1f0c5e73")

// PaymentSink adapts a PaymentRepository to the row processor's sink
// contract, mapping normalized payments to sink records.
type PaymentSink struct {
	repo bq.PaymentRepository
}

// NewPaymentSink creates a sink backed by the given repository.
func NewPaymentSink(repo bq.PaymentRepository) *PaymentSink {
	return &PaymentSink{repo: repo}
}

// Create implements pipeline.PaymentSink.
func (s *PaymentSink) Create(ctx context.Context, p *pipeline.NormalizedPayment) error {
	record := &bq.PaymentRecord{
		PaymentID:       PaymentID(p),
		CustomerID:      p.CustomerID,
		CustomerName:    p.CustomerName,
		CustomerEmail:   p.CustomerEmail,
		Amount:          p.Amount,
		Currency:        p.Currency,
		ReferenceNo:     p.ReferenceNo,
		USDAmount:       p.USDAmount,
		TransactionDate: p.TransactionDate,
		TransactionDay:  civil.DateOf(p.TransactionDate),
		SourceObject:    p.SourceObject,
		IngestedAt:      time.Now(),
	}
	return s.repo.InsertPayment(ctx, record)
}

// PaymentID derives the deterministic idempotency key for a row. The same
// row of the same uploaded file always maps to the same ID, so reprocessing
// after a redelivery cannot duplicate already-persisted rows.
func PaymentID(p *pipeline.NormalizedPayment) string {
	key := fmt.Sprintf("%s/%s:%d:%s", p.SourceBucket, p.SourceObject, p.SourceLine, p.ReferenceNo)
	return uuid.NewSHA1(paymentNamespace, []byte(key)).String()
}

// Ensure PaymentSink implements the pipeline's sink contract.
var _ pipeline.PaymentSink = (*PaymentSink)(nil)

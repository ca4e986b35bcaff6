// Package bigquery holds the shared row types and repository contracts
// for the BigQuery payment sink.
package bigquery

import (
	"context"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// PaymentRecord is one normalized payment as persisted in the payments
// table. Records are insert-only; this job never updates or deletes them.
type PaymentRecord struct {
	// PaymentID is deterministic per (bucket, object, line, reference_no)
	// and doubles as the streaming InsertID, so redelivered files do not
	// duplicate rows that already succeeded.
	PaymentID string

	CustomerID    string
	CustomerName  string
	CustomerEmail string

	Amount   decimal.Decimal
	Currency string

	ReferenceNo string

	USDAmount       decimal.Decimal
	TransactionDate time.Time

	// TransactionDay is the partition column, derived from TransactionDate.
	TransactionDay civil.Date

	// SourceObject records which uploaded file produced the row.
	SourceObject string

	IngestedAt time.Time
}

// Save implements bigquery.ValueSaver. Monetary values go out as NUMERIC
// (*big.Rat) and PaymentID is used as the best-effort dedup InsertID.
func (p *PaymentRecord) Save() (map[string]bq.Value, string, error) {
	row := map[string]bq.Value{
		"payment_id":       p.PaymentID,
		"customer_id":      p.CustomerID,
		"customer_name":    p.CustomerName,
		"customer_email":   p.CustomerEmail,
		"amount":           p.Amount.Rat(),
		"currency":         p.Currency,
		"reference_no":     p.ReferenceNo,
		"usd_amount":       p.USDAmount.Rat(),
		"transaction_date": p.TransactionDate,
		"transaction_day":  p.TransactionDay,
		"source_object":    p.SourceObject,
		"ingested_at":      p.IngestedAt,
	}
	return row, p.PaymentID, nil
}

// Ensure PaymentRecord implements ValueSaver.
var _ bq.ValueSaver = (*PaymentRecord)(nil)

// PaymentRepository is the write-mostly contract with the payment sink.
type PaymentRepository interface {
	// InsertPayment streams one record into the payments table.
	InsertPayment(ctx context.Context, record *PaymentRecord) error

	// ListRecentPayments returns the most recently ingested records,
	// newest first. Used by the read API and diagnostics, not by the job.
	ListRecentPayments(ctx context.Context, limit int) ([]*PaymentRecord, error)

	// Close releases the underlying client.
	Close() error
}

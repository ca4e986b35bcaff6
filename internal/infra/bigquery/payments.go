package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/payment-ingest/internal/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

const paymentsTable = "payments"

// decimalScale is the scale used when reading NUMERIC values back into
// decimals; BigQuery NUMERIC carries 9 fractional digits.
const decimalScale = 9

// BigQueryPaymentRepository is the concrete implementation of
// PaymentRepository that streams rows into BigQuery.
type BigQueryPaymentRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryPaymentRepository creates a repository with a shared client.
func NewBigQueryPaymentRepository(ctx context.Context, projectID, datasetID string) (*BigQueryPaymentRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryPaymentRepository: creating client: %w", err)
	}
	return &BigQueryPaymentRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryPaymentRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertPayment implements PaymentRepository. The record's InsertID makes
// the streaming insert a best-effort upsert across queue redeliveries.
func (r *BigQueryPaymentRepository) InsertPayment(ctx context.Context, record *bq.PaymentRecord) error {
	table := r.client.DatasetInProject(r.projectID, r.datasetID).Table(paymentsTable)
	if err := table.Inserter().Put(ctx, record); err != nil {
		return fmt.Errorf("InsertPayment: inserting row: %w", err)
	}
	return nil
}

// paymentRow is the query-side mapping of the payments table. NUMERIC
// columns come back as *big.Rat.
type paymentRow struct {
	PaymentID       string     `bigquery:"payment_id"`
	CustomerID      string     `bigquery:"customer_id"`
	CustomerName    string     `bigquery:"customer_name"`
	CustomerEmail   string     `bigquery:"customer_email"`
	Amount          *big.Rat   `bigquery:"amount"`
	Currency        string     `bigquery:"currency"`
	ReferenceNo     string     `bigquery:"reference_no"`
	USDAmount       *big.Rat   `bigquery:"usd_amount"`
	TransactionDate time.Time  `bigquery:"transaction_date"`
	TransactionDay  civil.Date `bigquery:"transaction_day"`
	SourceObject    string     `bigquery:"source_object"`
	IngestedAt      time.Time  `bigquery:"ingested_at"`
}

// ListRecentPayments implements PaymentRepository.
func (r *BigQueryPaymentRepository) ListRecentPayments(ctx context.Context, limit int) ([]*bq.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT
			payment_id, customer_id, customer_name, customer_email,
			amount, currency, reference_no, usd_amount,
			transaction_date, transaction_day, source_object, ingested_at
		FROM %s.%s
		ORDER BY ingested_at DESC
		LIMIT @limit
	`, r.datasetID, paymentsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentPayments: running query: %w", err)
	}

	var result []*bq.PaymentRecord
	for {
		var row paymentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentPayments: reading row: %w", err)
		}
		result = append(result, recordFromRow(&row))
	}

	return result, nil
}

func recordFromRow(row *paymentRow) *bq.PaymentRecord {
	rec := &bq.PaymentRecord{
		PaymentID:       row.PaymentID,
		CustomerID:      row.CustomerID,
		CustomerName:    row.CustomerName,
		CustomerEmail:   row.CustomerEmail,
		Currency:        row.Currency,
		ReferenceNo:     row.ReferenceNo,
		TransactionDate: row.TransactionDate,
		TransactionDay:  row.TransactionDay,
		SourceObject:    row.SourceObject,
		IngestedAt:      row.IngestedAt,
	}
	if row.Amount != nil {
		rec.Amount = decimal.NewFromBigRat(row.Amount, decimalScale)
	}
	if row.USDAmount != nil {
		rec.USDAmount = decimal.NewFromBigRat(row.USDAmount, decimalScale)
	}
	return rec
}

// Ensure BigQueryPaymentRepository implements PaymentRepository.
var _ bq.PaymentRepository = (*BigQueryPaymentRepository)(nil)

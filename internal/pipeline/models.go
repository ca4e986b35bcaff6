package pipeline

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceUnknown is recorded when a row carries no reference_no.
const ReferenceUnknown = "Unknown"

// ReferenceNA is used in failure logs when the row's reference could not
// even be decoded.
const ReferenceNA = "N/A"

// PaymentRow is one decoded CSV line, exactly as uploaded. Fields are raw
// strings; parsing and normalization happen in the row processor so that
// a malformed value fails only its own row.
type PaymentRow struct {
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Amount        string
	Currency      string
	ReferenceNo   string
	DateTime      string
}

// SourceFile identifies an uploaded file in the blob store.
type SourceFile struct {
	Bucket string
	Object string
}

func (s SourceFile) String() string {
	return s.Bucket + "/" + s.Object
}

// NormalizedPayment is the persisted form of a successfully processed row.
// It is written exactly once and never mutated. USDAmount satisfies
// usd_amount = amount / rate, where rate is units of Currency per 1 USD.
type NormalizedPayment struct {
	CustomerID      string
	CustomerName    string
	CustomerEmail   string
	Amount          decimal.Decimal
	Currency        string
	ReferenceNo     string
	USDAmount       decimal.Decimal
	TransactionDate time.Time

	// Provenance of the row, used by the sink to build an idempotency
	// key so queue redelivery does not duplicate records.
	SourceBucket string
	SourceObject string
	SourceLine   int
}

// BatchResult is the job-scoped summary of one file's processing.
// SuccessCount+FailureCount always equals the number of non-blank data rows.
type BatchResult struct {
	SuccessCount int
	FailureCount int
}

// Row failure reasons.
const (
	ReasonDecode      = "decode"
	ReasonBadAmount   = "bad_amount"
	ReasonBadCurrency = "bad_currency"
	ReasonRate        = "rate"
	ReasonBadDate     = "bad_date"
	ReasonSink        = "sink"
)

// RowError describes why a single row failed. Row errors are contained at
// the processor boundary and never abort the batch.
type RowError struct {
	// Reference is the row's reference_no, or ReferenceNA if unavailable.
	Reference string

	// Reason is one of the Reason* constants.
	Reason string

	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %s (%s): %v", e.Reference, e.Reason, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Outcome is the explicit tagged result of processing one row: exactly one
// of Payment or Err is set.
type Outcome struct {
	Payment *NormalizedPayment
	Err     *RowError
}

func success(p *NormalizedPayment) Outcome {
	return Outcome{Payment: p}
}

func failure(reference, reason string, err error) Outcome {
	return Outcome{Err: &RowError{Reference: reference, Reason: reason, Err: err}}
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentSink is the persistence boundary consumed by the row processor:
// one insert attempt per successful row, no batching, no updates. A sink
// error is a row-level failure like any other.
type PaymentSink interface {
	Create(ctx context.Context, payment *NormalizedPayment) error
}

// Accepted date_time layouts, tried in order.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// RowProcessor runs the per-row pipeline: validate, resolve rate, convert,
// persist. Every step is a failure point that aborts only its own row.
type RowProcessor struct {
	rates RateResolver
	sink  PaymentSink
	log   zerolog.Logger
}

// NewRowProcessor creates a row processor.
func NewRowProcessor(rates RateResolver, sink PaymentSink, log zerolog.Logger) *RowProcessor {
	return &RowProcessor{rates: rates, sink: sink, log: log}
}

// Process turns one row candidate into an Outcome. It never returns an
// error to the caller; failures are carried inside the Outcome so the
// orchestrator can aggregate and continue.
func (p *RowProcessor) Process(ctx context.Context, src SourceFile, cand *RowCandidate) Outcome {
	out := p.process(ctx, src, cand)
	if out.Err != nil {
		p.log.Error().
			Str("reference", out.Err.Reference).
			Str("reason", out.Err.Reason).
			Err(out.Err.Err).
			Int("line", cand.Line).
			Msg("Row processing failed")
	} else {
		p.log.Info().
			Str("reference", out.Payment.ReferenceNo).
			Int("line", cand.Line).
			Msg("Row processed successfully")
	}
	return out
}

func (p *RowProcessor) process(ctx context.Context, src SourceFile, cand *RowCandidate) Outcome {
	if cand.Err != nil {
		return failure(ReferenceNA, ReasonDecode, cand.Err)
	}

	// The reference defaults to a sentinel; its absence never fails the row.
	reference := strings.TrimSpace(cand.Row.ReferenceNo)
	if reference == "" {
		reference = ReferenceUnknown
	}

	currency := strings.ToUpper(strings.TrimSpace(cand.Row.Currency))
	if currency == "" {
		return failure(reference, ReasonBadCurrency, fmt.Errorf("currency is empty"))
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(cand.Row.Amount))
	if err != nil {
		return failure(reference, ReasonBadAmount, fmt.Errorf("amount %q: %w", cand.Row.Amount, err))
	}

	rate, err := p.rates.Resolve(ctx, currency)
	if err != nil {
		return failure(reference, ReasonRate, err)
	}

	usdAmount := amount.Div(rate)

	transactionDate, err := parseDateTime(cand.Row.DateTime)
	if err != nil {
		return failure(reference, ReasonBadDate, err)
	}

	payment := &NormalizedPayment{
		CustomerID:      cand.Row.CustomerID,
		CustomerName:    cand.Row.CustomerName,
		CustomerEmail:   cand.Row.CustomerEmail,
		Amount:          amount,
		Currency:        currency,
		ReferenceNo:     reference,
		USDAmount:       usdAmount,
		TransactionDate: transactionDate,
		SourceBucket:    src.Bucket,
		SourceObject:    src.Object,
		SourceLine:      cand.Line,
	}

	if err := p.sink.Create(ctx, payment); err != nil {
		return failure(reference, ReasonSink, err)
	}

	return success(payment)
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date_time %q", s)
}

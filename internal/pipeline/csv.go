package pipeline

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// Expected column names, byte-for-byte. No case normalization is applied
// to the header; files with renamed columns produce row-level failures
// downstream (missing fields), not a job-level failure.
const (
	colCustomerID    = "customer_id"
	colCustomerName  = "customer_name"
	colCustomerEmail = "customer_email"
	colAmount        = "amount"
	colCurrency      = "currency"
	colReferenceNo   = "reference_no"
	colDateTime      = "date_time"
)

// ErrNoHeader is returned when the file has no non-blank line to use as a
// header. This is the only decode condition that fails the whole job.
var ErrNoHeader = fmt.Errorf("csv: no header row")

// RowCandidate is one non-blank data line. Either Row is populated or Err
// holds the decode failure; a decode failure is a row-level failure
// consumed by the row processor, never a stop condition for the decoder.
type RowCandidate struct {
	// Line is the 1-based line number in the uploaded file.
	Line int
	Row  PaymentRow
	Err  error
}

// Decoder turns raw file content into an ordered, lazy, non-restartable
// sequence of RowCandidates. The first non-blank line is the header and
// defines the column order; blank lines are skipped silently.
type Decoder struct {
	lines  []string
	header []string
	pos    int
}

// NewDecoder splits the content on line boundaries and reads the header.
func NewDecoder(content []byte) (*Decoder, error) {
	lines := strings.Split(string(content), "\n")

	pos := 0
	var header []string
	for pos < len(lines) {
		line := strings.TrimSuffix(lines[pos], "\r")
		pos++
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("csv: header: %w", err)
		}
		header = fields
		break
	}
	if header == nil {
		return nil, ErrNoHeader
	}

	return &Decoder{lines: lines, header: header, pos: pos}, nil
}

// Header returns the column names in file order.
func (d *Decoder) Header() []string {
	return d.header
}

// Next returns the next non-blank data row, or nil when the file is
// exhausted.
func (d *Decoder) Next() *RowCandidate {
	for d.pos < len(d.lines) {
		line := strings.TrimSuffix(d.lines[d.pos], "\r")
		d.pos++
		if strings.TrimSpace(line) == "" {
			continue
		}

		cand := &RowCandidate{Line: d.pos}

		fields, err := parseLine(line)
		if err != nil {
			cand.Err = fmt.Errorf("csv: line %d: %w", cand.Line, err)
			return cand
		}
		if len(fields) != len(d.header) {
			cand.Err = fmt.Errorf("csv: line %d: %d fields, header has %d", cand.Line, len(fields), len(d.header))
			return cand
		}

		byName := make(map[string]string, len(d.header))
		for i, name := range d.header {
			byName[name] = fields[i]
		}
		cand.Row = PaymentRow{
			CustomerID:    byName[colCustomerID],
			CustomerName:  byName[colCustomerName],
			CustomerEmail: byName[colCustomerEmail],
			Amount:        byName[colAmount],
			Currency:      byName[colCurrency],
			ReferenceNo:   byName[colReferenceNo],
			DateTime:      byName[colDateTime],
		}
		return cand
	}
	return nil
}

// parseLine applies standard CSV quoting rules to a single line.
func parseLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	return r.Read()
}

package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/handwerkpro/handwerk-api/internal/domain"
)

// Invoice payment states as stored in the "status" field of an invoice record.
const (
	InvoiceStatusOffen     = "offen"     // issued, payment outstanding
	InvoiceStatusBezahlt   = "bezahlt"   // paid in full
	InvoiceStatusStorniert = "storniert" // cancelled, excluded from dunning
)

// Invoice is the typed view of a record in the "invoices" collection. The
// sync engine moves invoices around as generic records; the dunning engine
// reads them through this view.
type Invoice struct {
	ID          string
	Number      string
	CustomerID  string
	Status      string
	GrossAmount decimal.Decimal
	IssuedAt    time.Time // record CreatedAt; dunning age is counted from here
}

// Unpaid reports whether the invoice still participates in dunning.
func (i *Invoice) Unpaid() bool {
	return i.Status != InvoiceStatusBezahlt && i.Status != InvoiceStatusStorniert
}

// InvoiceFromRecord decodes an invoice record. Returns ErrMalformedRecord
// (wrapped) when the issue timestamp is missing or the amount cannot be
// parsed, so sweeps can skip the record instead of aborting.
func InvoiceFromRecord(rec Record) (*Invoice, error) {
	if rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("invoice %s: missing created_at: %w", rec.ID, domain.ErrMalformedRecord)
	}
	amount, err := decimalField(rec, "gross_amount")
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %v: %w", rec.ID, err, domain.ErrMalformedRecord)
	}
	status := rec.Field("status")
	if status == "" {
		status = InvoiceStatusOffen
	}
	return &Invoice{
		ID:          rec.ID,
		Number:      rec.Field("number"),
		CustomerID:  rec.Field("customer_id"),
		Status:      status,
		GrossAmount: amount,
		IssuedAt:    rec.CreatedAt,
	}, nil
}

// decimalField reads a money field that may arrive as a JSON number or as a
// string (both occur after a round-trip through the local cache).
func decimalField(rec Record, name string) (decimal.Decimal, error) {
	v, ok := rec.Fields[name]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing field %q", name)
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %v", name, err)
		}
		return d, nil
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has unsupported type %T", name, v)
	}
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mahnung is the durable proof that a dunning tier has fired for an invoice.
// At most one exists per (InvoiceID, TierID); that pair is the idempotency
// key and is enforced by a unique constraint in the local store.
type Mahnung struct {
	ID        string
	InvoiceID string
	TierID    string
	Fee       decimal.Decimal
	TotalDue  decimal.Decimal // gross amount plus all fees up to and including this tier
	CreatedAt time.Time
}

// ToRecord converts the Mahnung into a generic record of the "mahnungen"
// collection so it can travel through the sync engine like any other entity.
func (m *Mahnung) ToRecord() Record {
	return Record{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.CreatedAt,
		Fields: map[string]any{
			"invoice_id": m.InvoiceID,
			"tier_id":    m.TierID,
			"fee":        m.Fee.String(),
			"total_due":  m.TotalDue.String(),
		},
	}
}

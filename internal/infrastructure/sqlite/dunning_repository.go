package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
)

var _ repository.DunningRepository = (*DunningRepo)(nil)

// DunningRepo dunning ledger on the mahnungen table. The UNIQUE
// (invoice_id, tier_id) constraint is the authoritative once-per-tier
// guard; callers' Exists checks are an optimization only.
type DunningRepo struct {
	db *sql.DB
}

// NewDunningRepository builds the adapter.
func NewDunningRepository(db *sql.DB) *DunningRepo {
	return &DunningRepo{db: db}
}

// Create persists the escalation record. Returns domain.ErrDuplicate when
// the (invoice, tier) pair already fired.
func (r *DunningRepo) Create(m *entity.Mahnung) error {
	_, err := r.db.Exec(
		`INSERT INTO mahnungen (id, invoice_id, tier_id, fee, total_due, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.InvoiceID, m.TierID, m.Fee.String(), m.TotalDue.String(), m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert mahnung: %w", err)
	}
	return nil
}

// ListByInvoice returns the escalation history, oldest first.
func (r *DunningRepo) ListByInvoice(invoiceID string) ([]*entity.Mahnung, error) {
	rows, err := r.db.Query(
		`SELECT id, invoice_id, tier_id, fee, total_due, created_at
		 FROM mahnungen WHERE invoice_id = ? ORDER BY created_at, tier_id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list mahnungen: %w", err)
	}
	defer rows.Close()

	var list []*entity.Mahnung
	for rows.Next() {
		var m entity.Mahnung
		var fee, totalDue string
		if err := rows.Scan(&m.ID, &m.InvoiceID, &m.TierID, &fee, &totalDue, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mahnung: %w", err)
		}
		if m.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("parse fee %q: %w", fee, err)
		}
		if m.TotalDue, err = decimal.NewFromString(totalDue); err != nil {
			return nil, fmt.Errorf("parse total_due %q: %w", totalDue, err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

// Exists reports whether the tier already fired for the invoice.
func (r *DunningRepo) Exists(invoiceID, tierID string) (bool, error) {
	var one int
	err := r.db.QueryRow(
		`SELECT 1 FROM mahnungen WHERE invoice_id = ? AND tier_id = ?`, invoiceID, tierID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mahnung exists: %w", err)
	}
	return true, nil
}

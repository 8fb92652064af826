package repository

import "github.com/handwerkpro/handwerk-api/internal/domain/entity"

// DunningRepository persists the dunning ledger. The store must enforce
// uniqueness of (invoice_id, tier_id); Create returns domain.ErrDuplicate on
// a violation. That constraint, not the caller's pre-check, is what
// guarantees each tier fires at most once.
type DunningRepository interface {
	Create(m *entity.Mahnung) error
	ListByInvoice(invoiceID string) ([]*entity.Mahnung, error)
	Exists(invoiceID, tierID string) (bool, error)
}

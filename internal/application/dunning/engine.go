package dunning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// SweepResult is one actionable invoice found by a sweep: the tier is due
// and has not fired yet.
type SweepResult struct {
	Invoice *entity.Invoice
	Tier    entity.Tier
}

// Engine derives the due dunning tier from an invoice's age and payment
// status and guarantees, together with the ledger's unique constraint, that
// each tier fires at most once per invoice.
type Engine struct {
	repo  repository.DunningRepository
	tiers []entity.Tier // ascending AfterDays
	log   *logger.Logger
}

// NewEngine builds the engine. A nil tier table gets the default ladder.
func NewEngine(repo repository.DunningRepository, tiers []entity.Tier, log *logger.Logger) *Engine {
	if len(tiers) == 0 {
		tiers = entity.DefaultTierTable()
	}
	return &Engine{repo: repo, tiers: tiers, log: log}
}

// Tiers returns the ladder in escalation order.
func (e *Engine) Tiers() []entity.Tier {
	out := make([]entity.Tier, len(e.tiers))
	copy(out, e.tiers)
	return out
}

// TierByID looks a tier up, or returns false.
func (e *Engine) TierByID(id string) (entity.Tier, bool) {
	for _, t := range e.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return entity.Tier{}, false
}

// CurrentTier returns the due tier for the invoice at the given time, or nil
// for paid/cancelled invoices. The table is walked in ascending order and
// the result overwritten on each matching threshold, so ties resolve to the
// later tier. Below every threshold the base tier ("offen") is returned.
func (e *Engine) CurrentTier(inv *entity.Invoice, now time.Time) *entity.Tier {
	if inv == nil || !inv.Unpaid() {
		return nil
	}
	age := int(now.Sub(inv.IssuedAt).Hours() / 24)
	current := e.tiers[0]
	for _, t := range e.tiers {
		if t.AfterDays <= age {
			current = t
		}
	}
	return &current
}

// Sweep computes the due tier for every unpaid invoice and returns those
// whose tier has not fired yet. Malformed invoice records are skipped and
// logged, never fatal to the batch.
func (e *Engine) Sweep(records []entity.Record, now time.Time) []SweepResult {
	var due []SweepResult
	for _, rec := range records {
		inv, err := entity.InvoiceFromRecord(rec)
		if err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("skipping invoice in dunning sweep")
			continue
		}
		tier := e.CurrentTier(inv, now)
		if tier == nil || tier.Base() {
			continue
		}
		fired, err := e.repo.Exists(inv.ID, tier.ID)
		if err != nil {
			e.log.Warn().Err(err).Str("invoice", inv.ID).Msg("dunning ledger lookup failed, skipping")
			continue
		}
		if fired {
			continue
		}
		due = append(due, SweepResult{Invoice: inv, Tier: *tier})
	}
	return due
}

// RecordEscalation persists the proof that the tier fired, computing
// totalDue as the gross amount plus all fees up to and including this tier.
// Persisting may fail and is propagated: silently losing a ledger entry
// would mean duplicate letters. A concurrent sweep racing this call loses on
// the ledger's (invoice_id, tier_id) unique constraint with ErrDuplicate.
func (e *Engine) RecordEscalation(inv *entity.Invoice, tier entity.Tier, now time.Time) (*entity.Mahnung, error) {
	priorFees, err := e.FeeTotal(inv.ID)
	if err != nil {
		return nil, err
	}
	m := &entity.Mahnung{
		ID:        uuid.New().String(),
		InvoiceID: inv.ID,
		TierID:    tier.ID,
		Fee:       tier.Fee,
		TotalDue:  inv.GrossAmount.Add(priorFees).Add(tier.Fee),
		CreatedAt: now,
	}
	if err := e.repo.Create(m); err != nil {
		return nil, fmt.Errorf("record escalation %s/%s: %w", inv.ID, tier.ID, err)
	}
	return m, nil
}

// FeeTotal sums the fees of every recorded escalation for the invoice.
func (e *Engine) FeeTotal(invoiceID string) (decimal.Decimal, error) {
	list, err := e.repo.ListByInvoice(invoiceID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list escalations for %s: %w", invoiceID, err)
	}
	total := decimal.Zero
	for _, m := range list {
		total = total.Add(m.Fee)
	}
	return total, nil
}

// History returns the recorded escalations for an invoice.
func (e *Engine) History(invoiceID string) ([]*entity.Mahnung, error) {
	return e.repo.ListByInvoice(invoiceID)
}

package dunning

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// RunReport summarizes one dunning pass.
type RunReport struct {
	Due      int `json:"due"`      // actionable (invoice, tier) pairs found
	Sent     int `json:"sent"`     // letters handed to the notifier
	Recorded int `json:"recorded"` // ledger entries written
	Skipped  int `json:"skipped"`  // no recipient, send failure, or lost idempotency race
}

// Runner executes the periodic dunning pass: pull invoices and customers
// through the sync engine, sweep, send letters, record each fired tier and
// push the Mahnung back through sync. A pass never runs concurrently with
// itself; the ledger's unique constraint covers the rest.
type Runner struct {
	engine   *Engine
	syncer   *sync.Engine
	notifier repository.Notifier
	log      *logger.Logger

	tenant      string
	interval    time.Duration
	paymentDays int
	now         func() time.Time

	mu gosync.Mutex // serializes passes
}

// NewRunner builds the runner. A nil now defaults to time.Now.
func NewRunner(engine *Engine, syncer *sync.Engine, notifier repository.Notifier, log *logger.Logger, tenant string, interval time.Duration, paymentDays int, now func() time.Time) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	if paymentDays <= 0 {
		paymentDays = 7
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{
		engine:      engine,
		syncer:      syncer,
		notifier:    notifier,
		log:         log,
		tenant:      tenant,
		interval:    interval,
		paymentDays: paymentDays,
		now:         now,
	}
}

// Run blocks until ctx is done, executing one pass per interval.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("dunning pass failed")
			}
		}
	}
}

// RunOnce executes a single dunning pass. Returns domain.ErrConflict when a
// pass is already in flight.
func (r *Runner) RunOnce(ctx context.Context) (RunReport, error) {
	if !r.mu.TryLock() {
		return RunReport{}, domain.ErrConflict
	}
	defer r.mu.Unlock()

	invoices, err := r.syncer.Pull(ctx, r.tenant, entity.CollectionInvoices)
	if err != nil {
		return RunReport{}, err
	}
	customers, err := r.syncer.Pull(ctx, r.tenant, entity.CollectionCustomers)
	if err != nil {
		return RunReport{}, err
	}
	emailByCustomer := make(map[string]entity.Record, len(customers))
	for _, c := range customers {
		emailByCustomer[c.ID] = c
	}

	now := r.now()
	due := r.engine.Sweep(invoices, now)

	report := RunReport{Due: len(due)}
	for _, d := range due {
		customer, ok := emailByCustomer[d.Invoice.CustomerID]
		email := customer.Field("email")
		if !ok || email == "" {
			r.log.Warn().Str("invoice", d.Invoice.ID).Str("customer", d.Invoice.CustomerID).
				Msg("no recipient address, dunning letter deferred")
			report.Skipped++
			continue
		}

		priorFees, err := r.engine.FeeTotal(d.Invoice.ID)
		if err != nil {
			return report, err
		}
		totalDue := d.Invoice.GrossAmount.Add(priorFees).Add(d.Tier.Fee)
		letter := ComposeLetter(d.Invoice, d.Tier, customer.Field("name"), totalDue, r.paymentDays, now)

		if err := r.notifier.Send(ctx, email, letter.Subject, letter.Body); err != nil {
			// Not recorded: the tier stays actionable and the letter is
			// retried on the next pass.
			r.log.Warn().Err(err).Str("invoice", d.Invoice.ID).Str("tier", d.Tier.ID).
				Msg("dunning letter send failed")
			report.Skipped++
			continue
		}
		report.Sent++

		m, err := r.engine.RecordEscalation(d.Invoice, d.Tier, now)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// Lost the race against a concurrent pass; the other
				// writer owns the ledger entry.
				r.log.Warn().Str("invoice", d.Invoice.ID).Str("tier", d.Tier.ID).
					Msg("escalation already recorded")
				report.Skipped++
				continue
			}
			// Losing a ledger entry silently would mean duplicate letters,
			// so this aborts the pass loudly.
			return report, err
		}
		report.Recorded++

		if _, err := r.syncer.Upsert(ctx, r.tenant, entity.CollectionMahnungen, m.ToRecord()); err != nil {
			r.log.Warn().Err(err).Str("mahnung", m.ID).Msg("could not stage mahnung for sync")
		}

		r.log.Info().Str("invoice", d.Invoice.ID).Str("tier", d.Tier.ID).
			Str("total_due", m.TotalDue.StringFixed(2)).Msg("dunning tier fired")
	}
	return report, nil
}
